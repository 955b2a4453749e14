package utils

import (
	"flag"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetTestFlag overrides a registered flag for the rest of the test and restores it on cleanup.
// The value is formatted with fmt.Sprint, so numbers and booleans can be passed as is.
func SetTestFlag(t *testing.T, name string, value any) {
	t.Helper()
	registered := flag.Lookup(name)
	require.NotNil(t, registered, "Flag %s is not registered", name)
	previous := registered.Value.String()
	t.Cleanup(func() { require.NoError(t, flag.Set(name, previous)) })
	require.NoError(t, flag.Set(name, fmt.Sprint(value)), "Setting flag %s", name)
}
