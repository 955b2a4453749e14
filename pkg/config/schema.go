package config

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	schemaPackage = "detskip.config"
	rootMessage   = "Config"
)

// schemaSection groups the flags of one subsystem under a nested message of the config file.
type schemaSection struct {
	field   string // Field name inside Config.
	message string
	flags   []schemaFlag
}

// schemaFlag is a config field; its name is the flag name it sets.
type schemaFlag struct {
	name string
	kind descriptorpb.FieldDescriptorProto_Type
}

// sections lists every configurable flag. A flag missing here fails TestFlagsAreRegisteredInConfig.
var sections = []schemaSection{
	{field: "logging", message: "Logging", flags: []schemaFlag{
		{name: "log_handler_type", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
		{name: "log_level", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
	}},
	{field: "index", message: "Index", flags: []schemaFlag{
		{name: "index_shard_count", kind: descriptorpb.FieldDescriptorProto_TYPE_INT64},
		{name: "index_node_capacity", kind: descriptorpb.FieldDescriptorProto_TYPE_INT64},
		{name: "enable_bloom_filter", kind: descriptorpb.FieldDescriptorProto_TYPE_BOOL},
		{name: "bloom_expected_keys", kind: descriptorpb.FieldDescriptorProto_TYPE_UINT64},
		{name: "bloom_false_positive_rate", kind: descriptorpb.FieldDescriptorProto_TYPE_DOUBLE},
	}},
	{field: "records", message: "Records", flags: []schemaFlag{
		{name: "records_validate", kind: descriptorpb.FieldDescriptorProto_TYPE_BOOL},
		{name: "records_max_line_bytes", kind: descriptorpb.FieldDescriptorProto_TYPE_INT64},
		{name: "records_input", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
		{name: "records_output", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
		{name: "records_dir", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
		{name: "records_glob", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
	}},
	{field: "server", message: "Server", flags: []schemaFlag{
		{name: "mode", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
		{name: "address", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
		{name: "metrics_address", kind: descriptorpb.FieldDescriptorProto_TYPE_STRING},
	}},
}

// schemaProto assembles the config file descriptor. Fields are proto2 optionals so that presence tells apart
// "not in the file" from "set to the zero value".
func schemaProto() *descriptorpb.FileDescriptorProto {
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	root := &descriptorpb.DescriptorProto{Name: proto.String(rootMessage)}
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("detskip/config.proto"),
		Package: proto.String(schemaPackage),
		Syntax:  proto.String("proto2"),
	}
	for sectionIdx, section := range sections {
		message := &descriptorpb.DescriptorProto{Name: proto.String(section.message)}
		for flagIdx, schemaFlag := range section.flags {
			message.Field = append(message.Field, &descriptorpb.FieldDescriptorProto{
				Name:   proto.String(schemaFlag.name),
				Number: proto.Int32(int32(flagIdx + 1)),
				Label:  optional,
				Type:   schemaFlag.kind.Enum(),
			})
		}
		file.MessageType = append(file.MessageType, message)
		root.Field = append(root.Field, &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(section.field),
			Number:   proto.Int32(int32(sectionIdx + 1)),
			Label:    optional,
			Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
			TypeName: proto.String("." + schemaPackage + "." + section.message),
		})
	}
	file.MessageType = append(file.MessageType, root)
	return file
}

// configDescriptor compiles the schema once and returns the root message descriptor.
var configDescriptor = sync.OnceValues(func() (protoreflect.MessageDescriptor, error) {
	file, err := protodesc.NewFile(schemaProto(), nil /*resolver*/)
	if err != nil {
		return nil, fmt.Errorf("failed to compile the config schema: %w", err)
	}
	root := file.Messages().ByName(rootMessage)
	if root == nil {
		return nil, fmt.Errorf("config schema has no %s message", rootMessage)
	}
	return root, nil
})
