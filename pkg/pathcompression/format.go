package pathcompression

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/docsite-tools/docsync/pkg/util"
)

// Format represents the archive format for compression.
type Format string

const (
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
)

var formatToString = map[Format]string{
	TarGz:  "tar.gz",
	TarZst: "tar.zst",
}

var stringToFormat map[string]Format

func init() {
	// Inverting the map at runtime ensures formatToString is fully loaded
	stringToFormat = util.InvertMap(formatToString)
}

func (f Format) String() string {
	if str, ok := formatToString[f]; ok {
		return str
	}
	return fmt.Sprintf("unknown_compression_format(%s)", string(f))
}

// Extension returns the file name suffix for archives of this format, including the dot.
func (f Format) Extension() string {
	return "." + f.String()
}

func ParseFormat(s string) (Format, error) {
	if format, ok := stringToFormat[s]; ok {
		return format, nil
	}
	return "", fmt.Errorf("invalid compression format: %q. Must be 'tar.gz' or 'tar.zst'", s)
}

// MarshalYAML implements the yaml.Marshaler interface for Format.
func (f Format) MarshalYAML() (any, error) {
	return f.String(), nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Format.
func (f *Format) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("compression format should be a string, got %q", value.Value)
	}
	format, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = format
	return nil
}
