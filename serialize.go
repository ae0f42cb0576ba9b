package logship

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ErrSerialize wraps record serialization failures (for example a non-finite
// float field). The offending record is dropped and counted; ingestion
// continues.
var ErrSerialize = fmt.Errorf("logship: record not serializable")

// AppendLine serializes r as one JSON line (including the trailing newline)
// and appends it to dst. Field order is preserved. The line is shaped:
//
//	{"timestamp": RFC3339Nano, "level": "INFO", "event": {"fields": {...}, "target": "...", "span": {"name": "..."}}}
func AppendLine(dst []byte, r Record) ([]byte, error) {
	dst = append(dst, `{"timestamp":`...)
	dst = strconv.AppendQuote(dst, r.Timestamp.Format(time.RFC3339Nano))
	dst = append(dst, `,"level":`...)
	dst = strconv.AppendQuote(dst, r.Level.String())
	dst = append(dst, `,"event":{"fields":{`...)

	dst = appendField(dst, "message", r.Message, true)
	for _, f := range r.Fields {
		var err error
		dst, err = appendJSONField(dst, f.Key, f.Value, false)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrSerialize, f.Key, err)
		}
	}
	dst = append(dst, '}')

	dst = append(dst, `,"target":`...)
	dst = strconv.AppendQuote(dst, r.Target)

	if r.Span != nil {
		dst = append(dst, `,"span":{"name":`...)
		dst = strconv.AppendQuote(dst, r.Span.Name)
		if r.Span.Elapsed != 0 {
			dst = append(dst, `,"elapsed_ns":`...)
			dst = strconv.AppendInt(dst, r.Span.Elapsed.Nanoseconds(), 10)
		}
		if r.Span.Busy != 0 || r.Span.Idle != 0 {
			dst = append(dst, `,"busy_ns":`...)
			dst = strconv.AppendInt(dst, r.Span.Busy.Nanoseconds(), 10)
			dst = append(dst, `,"idle_ns":`...)
			dst = strconv.AppendInt(dst, r.Span.Idle.Nanoseconds(), 10)
		}
		dst = append(dst, '}')
	}

	dst = append(dst, '}', '}', '\n')
	return dst, nil
}

func appendField(dst []byte, key, value string, first bool) []byte {
	if !first {
		dst = append(dst, ',')
	}
	dst = strconv.AppendQuote(dst, key)
	dst = append(dst, ':')
	dst = strconv.AppendQuote(dst, value)
	return dst
}

func appendJSONField(dst []byte, key string, value any, first bool) ([]byte, error) {
	enc, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if !first {
		dst = append(dst, ',')
	}
	dst = strconv.AppendQuote(dst, key)
	dst = append(dst, ':')
	dst = append(dst, enc...)
	return dst, nil
}
