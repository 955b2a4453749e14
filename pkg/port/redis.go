// Package port exposes a key set over the Redis protocol, so any Redis client can drive it with set commands.
// The server holds a single set; commands take members only, without a Redis key naming the set.
package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/redcon"

	"github.com/nobletooth/detskip/pkg/storage"
)

const RedisOk = "OK"

var (
	address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

	redisCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_commands_total",
		Help: "Total number of handled Redis commands.",
	}, []string{"command"})
)

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool    // Closes the connection if true.
	err             *string // Error to return if set.
	writeInt        *int    // Writes an integer value if set.
	writeString     string  // Writes a string value otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisBool(b bool) redisOutput {
	if b {
		return writeRedisInt(1)
	}
	return writeRedisInt(0)
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

func wrongArgs(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command)))
}

type redisHandler struct {
	set storage.KeySet
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(set storage.KeySet) (*redisHandler, error) {
	if set == nil {
		return nil, errors.New("expected a non-nil key set")
	}
	return &redisHandler{set: set}, nil
}

// forEachMember applies `apply` to every argument and counts the ones it reported true for.
func forEachMember(members []string, apply func(string) (bool, error)) redisOutput {
	changed := 0
	for _, member := range members {
		ok, err := apply(member)
		if err != nil {
			return writeRedisError(err)
		}
		if ok {
			changed++
		}
	}
	return writeRedisInt(changed)
}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	command := strings.ToUpper(cmd.command)
	switch command {
	case "PING":
		if len(cmd.args) > 1 {
			return wrongArgs(command)
		} else if len(cmd.args) == 1 {
			return writeRedisString(cmd.args[0])
		}
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	case "SADD":
		if len(cmd.args) < 1 {
			return wrongArgs(command)
		}
		return forEachMember(cmd.args, rh.set.Add)
	case "SREM":
		if len(cmd.args) < 1 {
			return wrongArgs(command)
		}
		return forEachMember(cmd.args, rh.set.Remove)
	case "SISMEMBER":
		if len(cmd.args) != 1 {
			return wrongArgs(command)
		}
		return writeRedisBool(rh.set.Contains(cmd.args[0]))
	case "SCARD":
		if len(cmd.args) != 0 {
			return wrongArgs(command)
		}
		return writeRedisInt(rh.set.Len())
	case "FLUSHALL":
		rh.set.Clear()
		return writeRedisString(RedisOk)
	case "DEBUG":
		if len(cmd.args) != 1 || !strings.EqualFold(cmd.args[0], "VALIDATE") {
			return writeRedisError(errors.New("only 'DEBUG VALIDATE' is supported"))
		}
		if !rh.set.Validate() {
			return writeRedisError(errors.New("set failed validation"))
		}
		return writeRedisString(RedisOk)
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// knownCommands bounds the label values of redis_commands_total.
var knownCommands = []string{"PING", "QUIT", "SADD", "SREM", "SISMEMBER", "SCARD", "FLUSHALL", "DEBUG"}

func commandLabel(command string) string {
	if upper := strings.ToUpper(command); slices.Contains(knownCommands, upper) {
		return upper
	}
	return "unknown"
}

// write sends `output` over `conn`.
func write(conn redcon.Conn, output redisOutput) {
	switch {
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	default:
		conn.WriteString(output.writeString)
	}
	if output.closeConnection {
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close connection.", "error", err)
		}
	}
}

// RunRedisServer serves `set` over the Redis protocol on `--address` until `ctx` is done.
func RunRedisServer(ctx context.Context, set storage.KeySet) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(set)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			redisCommands.WithLabelValues(commandLabel(command.command)).Inc()
			write(conn, redisHandler.handle(command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			slog.Debug("Accepted connection.", "remote", conn.RemoteAddr())
			return true
		},
		/*close*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Debug("Connection closed with error.", "remote", conn.RemoteAddr(), "error", err)
			}
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()
	slog.Info("Serving the key set over Redis protocol.", "address", *address)

	select {
	case <-ctx.Done():
		if err := redisServer.Close(); err != nil {
			return fmt.Errorf("failed to close the redis server: %w", err)
		}
	case err := <-serverErrSignal:
		if err == nil {
			return errors.New("redis server stopped unexpectedly")
		}
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
