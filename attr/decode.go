package attr

import (
	"bytes"
	"fmt"
	"syscall"

	"github.com/vishvananda/netlink/nl"
)

// PortRecord is one decoded port list item.
type PortRecord struct {
	Ifindex uint32
	Speed   uint32
	Duplex  uint8
	Changed bool
	LinkUp  bool
}

// OptionRecord is one decoded option list item. Data holds the value
// sized to its type: four bytes in native order for WireU32, the string
// bytes without terminator for WireString.
type OptionRecord struct {
	Name    string
	Type    WireType
	Data    []byte
	Changed bool
}

// Anomaly describes a list item that was skipped during decoding.
type Anomaly struct {
	// Item is the zero-based position of the item in its list.
	Item int
	// Name is the option name when it could be read.
	Name   string
	Reason string
}

func (a Anomaly) String() string {
	if a.Name != "" {
		return fmt.Sprintf("item %d (%q): %s", a.Item, a.Name, a.Reason)
	}
	return fmt.Sprintf("item %d: %s", a.Item, a.Reason)
}

// Header is the top level of a team reply or notification.
type Header struct {
	// Team is the team device ifindex; HasTeam reports whether the
	// attribute was present at all.
	Team    uint32
	HasTeam bool
	// HasList reports whether the message carried the list attribute.
	HasList bool
}

// PortList is a decoded PORT_LIST_GET reply or notification.
type PortList struct {
	Header
	Ports     []PortRecord
	Anomalies []Anomaly
}

// OptionList is a decoded OPTIONS_GET reply or notification.
type OptionList struct {
	Header
	Options   []OptionRecord
	Anomalies []Anomaly
}

// parse indexes attributes by type. The first occurrence of a type wins.
func parse(b []byte) (map[uint16]syscall.NetlinkRouteAttr, error) {
	attrs, err := nl.ParseRouteAttr(b)
	if err != nil {
		return nil, err
	}
	byType := make(map[uint16]syscall.NetlinkRouteAttr, len(attrs))
	for _, a := range attrs {
		t := a.Attr.Type & typeMask
		if _, seen := byType[t]; !seen {
			byType[t] = a
		}
	}
	return byType, nil
}

func getU32(a syscall.NetlinkRouteAttr) (uint32, bool) {
	if len(a.Value) < 4 {
		return 0, false
	}
	return nl.NativeEndian().Uint32(a.Value[:4]), true
}

func getString(a syscall.NetlinkRouteAttr) string {
	if i := bytes.IndexByte(a.Value, 0); i >= 0 {
		return string(a.Value[:i])
	}
	return string(a.Value)
}

func decodeHeader(b []byte, list uint16) (Header, []syscall.NetlinkRouteAttr, error) {
	var h Header
	top, err := parse(b)
	if err != nil {
		return h, nil, fmt.Errorf("parse top-level attributes: %w", err)
	}
	if a, ok := top[AttrTeamIfindex]; ok {
		h.Team, h.HasTeam = getU32(a)
	}
	l, ok := top[list]
	if !ok {
		return h, nil, nil
	}
	h.HasList = true
	items, err := nl.ParseRouteAttr(l.Value)
	if err != nil {
		return h, nil, fmt.Errorf("parse list attribute: %w", err)
	}
	return h, items, nil
}

// DecodePortList decodes the attributes of a port list message.
// Items without an ifindex, or whose attributes cannot be parsed, are
// skipped and reported in Anomalies.
func DecodePortList(b []byte) (PortList, error) {
	h, items, err := decodeHeader(b, AttrListPort)
	if err != nil {
		return PortList{}, err
	}
	pl := PortList{Header: h}
	for i, item := range items {
		attrs, err := parse(item.Value)
		if err != nil {
			pl.Anomalies = append(pl.Anomalies, Anomaly{Item: i, Reason: "failed to parse nested attributes"})
			continue
		}
		a, ok := attrs[AttrPortIfindex]
		if !ok {
			pl.Anomalies = append(pl.Anomalies, Anomaly{Item: i, Reason: "ifindex port attribute not found"})
			continue
		}
		var p PortRecord
		if p.Ifindex, ok = getU32(a); !ok {
			pl.Anomalies = append(pl.Anomalies, Anomaly{Item: i, Reason: "short ifindex port attribute"})
			continue
		}
		_, p.Changed = attrs[AttrPortChanged]
		_, p.LinkUp = attrs[AttrPortLinkUp]
		if a, ok := attrs[AttrPortSpeed]; ok {
			p.Speed, _ = getU32(a)
		}
		if a, ok := attrs[AttrPortDuplex]; ok && len(a.Value) > 0 {
			p.Duplex = a.Value[0]
		}
		pl.Ports = append(pl.Ports, p)
	}
	return pl, nil
}

// DecodeOptionList decodes the attributes of an option list message.
// Items missing a name, type or data attribute, items of an unknown
// type, and later duplicates of an already decoded name are skipped
// and reported in Anomalies.
func DecodeOptionList(b []byte) (OptionList, error) {
	h, items, err := decodeHeader(b, AttrListOption)
	if err != nil {
		return OptionList{}, err
	}
	ol := OptionList{Header: h}
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		attrs, err := parse(item.Value)
		if err != nil {
			ol.Anomalies = append(ol.Anomalies, Anomaly{Item: i, Reason: "failed to parse nested attributes"})
			continue
		}
		nameAttr, hasName := attrs[AttrOptionName]
		typeAttr, hasType := attrs[AttrOptionType]
		dataAttr, hasData := attrs[AttrOptionData]
		if !hasName || !hasType || !hasData {
			ol.Anomalies = append(ol.Anomalies, Anomaly{Item: i, Reason: "name, type or data attribute missing"})
			continue
		}

		name := getString(nameAttr)
		if _, dup := seen[name]; dup {
			ol.Anomalies = append(ol.Anomalies, Anomaly{Item: i, Name: name, Reason: "option already in list"})
			continue
		}

		rawType, ok := getU32(typeAttr)
		if !ok {
			ol.Anomalies = append(ol.Anomalies, Anomaly{Item: i, Name: name, Reason: "short type attribute"})
			continue
		}
		o := OptionRecord{Name: name, Type: WireType(rawType)}
		_, o.Changed = attrs[AttrOptionChanged]

		switch o.Type {
		case WireU32:
			v, ok := getU32(dataAttr)
			if !ok {
				ol.Anomalies = append(ol.Anomalies, Anomaly{Item: i, Name: name, Reason: "short u32 data attribute"})
				continue
			}
			o.Data = nl.Uint32Attr(v)
		case WireString:
			o.Data = []byte(getString(dataAttr))
		default:
			ol.Anomalies = append(ol.Anomalies, Anomaly{Item: i, Name: name, Reason: fmt.Sprintf("unknown type %s", o.Type)})
			continue
		}

		seen[name] = struct{}{}
		ol.Options = append(ol.Options, o)
	}
	return ol, nil
}
