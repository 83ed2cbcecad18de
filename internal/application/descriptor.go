package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	descriptorTag     = "discourse-bbb"
	descriptorVersion = "1"
	descriptorOpen    = "[wrap=" + descriptorTag
	descriptorClose   = "[/wrap]"
)

// EncodeDescriptor renders d, and window when non-nil, as a tagged record that
// can be embedded in post content and read back with ParseDescriptor:
//
//	[wrap=discourse-bbb v="1" meetingID="…" attendeePW="…" moderatorPW="…"][/wrap]
func EncodeDescriptor(d MeetingDescriptor, window *ScheduleWindow) string {
	var b strings.Builder
	b.WriteString(descriptorOpen)
	writeAttr(&b, "v", descriptorVersion)
	writeAttr(&b, "meetingID", d.MeetingID)
	writeAttr(&b, "attendeePW", d.AttendeePassword)
	writeAttr(&b, "moderatorPW", d.ModeratorPassword)
	if d.DisplayName != "" {
		writeAttr(&b, "name", d.DisplayName)
	}
	if window != nil {
		writeAttr(&b, "startAt", window.StartAt.UTC().Format(time.RFC3339))
		writeAttr(&b, "duration", strconv.Itoa(window.DurationMinutes))
	}
	b.WriteString("]")
	b.WriteString(descriptorClose)
	return b.String()
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteString(`="`)
	for _, r := range value {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
}

// ParseDescriptor reads a record produced by EncodeDescriptor. Unknown
// attributes are ignored; records of another version are rejected. The
// returned window is nil when the record carries no schedule.
func ParseDescriptor(raw string) (MeetingDescriptor, *ScheduleWindow, error) {
	attrs, err := parseDescriptorAttrs(strings.TrimSpace(raw))
	if err != nil {
		return MeetingDescriptor{}, nil, newValidationError(ErrInvalidDescriptor, "descriptor", err.Error())
	}
	if v := attrs["v"]; v != descriptorVersion {
		return MeetingDescriptor{}, nil, newValidationError(ErrInvalidDescriptor, "descriptor",
			fmt.Sprintf("unsupported descriptor version %q", v))
	}

	d := MeetingDescriptor{
		MeetingID:         attrs["meetingID"],
		AttendeePassword:  attrs["attendeePW"],
		ModeratorPassword: attrs["moderatorPW"],
		DisplayName:       attrs["name"],
	}
	if !d.Complete() {
		return MeetingDescriptor{}, nil, newValidationError(ErrMissingFields, "descriptor",
			"descriptor must carry meetingID, attendeePW and moderatorPW")
	}

	start, ok := attrs["startAt"]
	if !ok || start == "" {
		return d, nil, nil
	}
	startAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return MeetingDescriptor{}, nil, newValidationError(ErrInvalidDescriptor, "descriptor", "startAt is not RFC 3339")
	}
	window := &ScheduleWindow{StartAt: startAt.UTC()}
	if raw, ok := attrs["duration"]; ok && raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			return MeetingDescriptor{}, nil, newValidationError(ErrInvalidDescriptor, "descriptor", "duration must be a non-negative integer")
		}
		if minutes > MaxWindowMinutes {
			return MeetingDescriptor{}, nil, newValidationError(ErrInvalidDescriptor, "descriptor",
				fmt.Sprintf("duration must not exceed %d minutes", MaxWindowMinutes))
		}
		window.DurationMinutes = minutes
	}
	if window.DurationMinutes > 0 {
		end := window.StartAt.Add(time.Duration(window.DurationMinutes) * time.Minute)
		window.EndAt = &end
	}
	return d, window, nil
}

func parseDescriptorAttrs(s string) (map[string]string, error) {
	if !strings.HasPrefix(s, descriptorOpen) {
		return nil, fmt.Errorf("descriptor must start with %s", descriptorOpen)
	}
	s = s[len(descriptorOpen):]
	attrs := make(map[string]string)

	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if s == "" {
			return nil, fmt.Errorf("unterminated descriptor")
		}
		if s[0] == ']' {
			rest := strings.TrimSpace(s[1:])
			if rest != "" && rest != descriptorClose {
				return nil, fmt.Errorf("unexpected trailing content")
			}
			return attrs, nil
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed attribute")
		}
		key := s[:eq]
		if strings.ContainsAny(key, " \t\"]") {
			return nil, fmt.Errorf("malformed attribute name %q", key)
		}
		s = s[eq+1:]
		if s == "" || s[0] != '"' {
			return nil, fmt.Errorf("attribute %s must be quoted", key)
		}

		value, rest, err := readQuoted(s[1:])
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", key, err)
		}
		attrs[key] = value
		s = rest
	}
}

func readQuoted(s string) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 >= len(s) {
				return "", "", fmt.Errorf("dangling escape")
			}
			i++
			b.WriteByte(s[i])
		case '"':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", fmt.Errorf("unterminated value")
}
