package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
)

// Interface names a network interface either by name or by ifindex.
type Interface struct {
	Name  string
	Index uint32
}

// ParseInterface parses a decimal ifindex or an interface name.
func ParseInterface(s string) (Interface, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interface{}, fmt.Errorf("interface cannot be empty")
	}
	if s[0] >= '0' && s[0] <= '9' {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil || v == 0 {
			return Interface{}, fmt.Errorf("invalid ifindex %q", s)
		}
		return Interface{Index: uint32(v)}, nil
	}
	if len(s) >= 16 {
		return Interface{}, fmt.Errorf("interface name %q too long", s)
	}
	return Interface{Name: s}, nil
}

// IsZero reports whether no interface was given.
func (i Interface) IsZero() bool {
	return i.Name == "" && i.Index == 0
}

func (i Interface) String() string {
	if i.Name != "" {
		return i.Name
	}
	return strconv.FormatUint(uint64(i.Index), 10)
}

func interfaceMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("interface", &s); err != nil {
			return err
		}
		i, err := ParseInterface(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(i))
		return nil
	}
}

// ParseU32 parses a decimal or 0x-prefixed hexadecimal uint32.
func ParseU32(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid u32 value %q", s)
	}
	return uint32(v), nil
}
