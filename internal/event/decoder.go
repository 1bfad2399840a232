package event

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncodings is the decode order used when none is configured.
// UTF-8 is strict; the single-byte code pages accept any input, so they only
// succeed when the transcoded text is a valid document.
var DefaultEncodings = []string{"utf-8", "cp1254", "latin1"}

// utf8BOM is stripped before a UTF-8 attempt
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// encodings maps accepted encoding names (lowercase) to their decoders.
// A nil entry means strict UTF-8 handled without transcoding.
var encodings = map[string]encoding.Encoding{
	"utf-8":        nil,
	"utf8":         nil,
	"utf-16":       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	"cp1252":       charmap.Windows1252,
	"windows-1252": charmap.Windows1252,
	"cp1254":       charmap.Windows1254,
	"windows-1254": charmap.Windows1254,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin5":       charmap.ISO8859_9,
	"iso-8859-9":   charmap.ISO8859_9,
}

// Wire field names in the hook document
const (
	fieldEventName      = "hook_event_name"
	fieldToolName       = "tool_name"
	fieldSessionID      = "session_id"
	fieldPrompt         = "prompt"
	fieldCWD            = "cwd"
	fieldTranscriptPath = "transcript_path"
)

var (
	eventNamePattern = regexp.MustCompile(`"` + fieldEventName + `"\s*:\s*"([^"]*)"`)
	toolNamePattern  = regexp.MustCompile(`"` + fieldToolName + `"\s*:\s*"([^"]*)"`)
	sessionPattern   = regexp.MustCompile(`"` + fieldSessionID + `"\s*:\s*"([^"]*)"`)
)

// attempt is one step of the decode chain
type attempt struct {
	name string
	enc  encoding.Encoding
}

// Decoder turns raw hook input into an Event. It holds only the immutable
// encoding chain and is safe for concurrent use.
type Decoder struct {
	chain []attempt
}

// NewDecoder builds a decoder that tries the named encodings in order.
// Unrecognized names are skipped and returned so the caller can report them.
// An empty list (or one with no usable names) falls back to DefaultEncodings.
func NewDecoder(names []string) (*Decoder, []string) {
	var skipped []string
	d := &Decoder{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		enc, ok := encodings[key]
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		d.chain = append(d.chain, attempt{name: key, enc: enc})
	}
	if len(d.chain) == 0 {
		for _, name := range DefaultEncodings {
			d.chain = append(d.chain, attempt{name: name, enc: encodings[name]})
		}
	}
	return d, skipped
}

// Encodings returns the names in the decode chain, in order
func (d *Decoder) Encodings() []string {
	names := make([]string, len(d.chain))
	for i, a := range d.chain {
		names[i] = a.name
	}
	return names
}

// Decode never fails. It tries each encoding until one yields a JSON object,
// then falls back to a permissive search of the raw text for the routing
// fields, and finally to an Unknown event. The returned Event always holds
// a private copy of raw.
func (d *Decoder) Decode(raw []byte) Event {
	ev := Event{Type: Unknown, raw: bytes.Clone(raw)}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ev
	}

	for _, a := range d.chain {
		text, err := transcode(a, raw)
		if err != nil {
			continue
		}
		if doc, ok := parseDocument(text); ok {
			fillFromDocument(&ev, doc)
			ev.Encoding = a.name
			return ev
		}
	}

	recoverFields(&ev, raw)
	return ev
}

// transcode converts raw to UTF-8 text using the attempt's encoding
func transcode(a attempt, raw []byte) (string, error) {
	if a.enc == nil {
		data := bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("invalid utf-8 input")
		}
		return string(data), nil
	}
	out, err := a.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", a.name, err)
	}
	return string(out), nil
}

// parseDocument accepts only a well-formed JSON object
func parseDocument(text string) (gjson.Result, bool) {
	text = strings.TrimSpace(text)
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	return doc, true
}

func fillFromDocument(ev *Event, doc gjson.Result) {
	fields := gjson.GetMany(doc.Raw,
		fieldEventName, fieldToolName, fieldSessionID,
		fieldPrompt, fieldCWD, fieldTranscriptPath,
	)

	if name := fields[0].String(); name != "" {
		ev.Type = Type(name)
	}
	ev.ToolName = fields[1].String()
	ev.SessionID = fields[2].String()
	ev.Prompt = fields[3].String()
	ev.CWD = fields[4].String()
	ev.TranscriptPath = fields[5].String()
}

// recoverFields scans the raw bytes as ASCII for the fields routing needs.
// Non-ASCII bytes are dropped so a broken multi-byte sequence cannot hide a
// field that follows it.
func recoverFields(ev *Event, raw []byte) {
	text := asciiOnly(raw)
	if m := eventNamePattern.FindStringSubmatch(text); m != nil && m[1] != "" {
		ev.Type = Type(m[1])
		ev.Recovered = true
	}
	if m := toolNamePattern.FindStringSubmatch(text); m != nil && m[1] != "" {
		ev.ToolName = m[1]
		ev.Recovered = true
	}
	if m := sessionPattern.FindStringSubmatch(text); m != nil {
		ev.SessionID = m[1]
	}
}

func asciiOnly(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		if c < utf8.RuneSelf {
			b.WriteByte(c)
		}
	}
	return b.String()
}
