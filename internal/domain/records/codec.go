package records

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

// Record file fields
const (
	fieldName    protowire.Number = 1
	fieldPayload protowire.Number = 2
	fieldCodec   protowire.Number = 3
)

// Payload codecs
const (
	codecRaw  uint64 = 0
	codecZstd uint64 = 1
)

var errMalformed = errors.New("malformed record file")

// Codec encodes record files. A record file carries its logical name so
// listings can be rebuilt from the files alone.
type Codec struct {
	compress  bool
	threshold int
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// NewCodec creates a codec. Payloads of at least threshold bytes are zstd
// compressed when compress is set and compression actually shrinks them.
func NewCodec(compress bool, threshold, maxSize int) (*Codec, error) {
	c := &Codec{compress: compress, threshold: threshold}

	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		c.enc = enc
	}

	decOpts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if maxSize > 0 {
		decOpts = append(decOpts, zstd.WithDecoderMaxMemory(uint64(maxSize)))
	}
	dec, err := zstd.NewReader(nil, decOpts...)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	c.dec = dec

	return c, nil
}

// Encode serializes a record
func (c *Codec) Encode(name string, data []byte) []byte {
	codec := codecRaw
	payload := data

	if c.compress && len(data) >= c.threshold && len(data) > 0 {
		if packed := c.enc.EncodeAll(data, nil); len(packed) < len(data) {
			codec, payload = codecZstd, packed
		}
	}

	b := make([]byte, 0, len(name)+len(payload)+16)
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	b = protowire.AppendTag(b, fieldCodec, protowire.VarintType)
	b = protowire.AppendVarint(b, codec)
	return b
}

type rawRecord struct {
	name    string
	payload []byte
	codec   uint64
	hasName bool
}

func parse(b []byte) (rawRecord, error) {
	var r rawRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return r, fmt.Errorf("%w: name: %v", errMalformed, protowire.ParseError(n))
			}
			r.name, r.hasName = v, true
			b = b[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return r, fmt.Errorf("%w: payload: %v", errMalformed, protowire.ParseError(n))
			}
			r.payload = v
			b = b[n:]
		case num == fieldCodec && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, fmt.Errorf("%w: codec: %v", errMalformed, protowire.ParseError(n))
			}
			r.codec = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, fmt.Errorf("%w: field %d: %v", errMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !r.hasName {
		return r, fmt.Errorf("%w: missing name", errMalformed)
	}
	return r, nil
}

// Decode returns the record's name and payload. A zero-length payload is
// returned as a non-nil empty slice.
func (c *Codec) Decode(b []byte) (string, []byte, error) {
	r, err := parse(b)
	if err != nil {
		return "", nil, err
	}

	switch r.codec {
	case codecRaw:
		out := make([]byte, len(r.payload))
		copy(out, r.payload)
		return r.name, out, nil
	case codecZstd:
		out, err := c.dec.DecodeAll(r.payload, nil)
		if err != nil {
			return "", nil, fmt.Errorf("%w: zstd: %v", errMalformed, err)
		}
		if out == nil {
			out = []byte{}
		}
		return r.name, out, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown codec %d", errMalformed, r.codec)
	}
}

// DecodeName returns only the record's name
func (c *Codec) DecodeName(b []byte) (string, error) {
	r, err := parse(b)
	if err != nil {
		return "", err
	}
	return r.name, nil
}

// Close releases encoder and decoder resources
func (c *Codec) Close() {
	if c.enc != nil {
		c.enc.Close()
	}
	c.dec.Close()
}
