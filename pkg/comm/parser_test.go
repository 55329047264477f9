package comm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type parseStep struct {
	frame *Frame
	err   string
}

type parseStepBuilder struct {
	steps []parseStep
}

func parseSteps() *parseStepBuilder {
	return &parseStepBuilder{}
}

func (b *parseStepBuilder) frame(d Dialect, payload ...byte) *parseStepBuilder {
	b.steps = append(b.steps, parseStep{frame: NewFrame(d, payload)})
	return b
}

func (b *parseStepBuilder) reject(reason string) *parseStepBuilder {
	b.steps = append(b.steps, parseStep{err: reason})
	return b
}

func (b *parseStepBuilder) build() []parseStep {
	return b.steps
}

func concat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func drain(p *Parser) []parseStep {
	var steps []parseStep
	for {
		f, err := p.Next()
		if err != nil {
			steps = append(steps, parseStep{err: err.(*FramingError).Reason})
			continue
		}
		if f == nil {
			return steps
		}
		steps = append(steps, parseStep{frame: f})
	}
}

var (
	enableCmd    = NewFrame(DialectConfig, []byte{0xff, 0x00, 0x01, 0x00}).Bytes()
	enableAck    = NewFrame(DialectConfig, []byte{0xff, 0x01, 0x00, 0x00, 0x01, 0x00, 0x40, 0x00}).Bytes()
	simpleReport = NewFrame(DialectReport, []byte{0x02, 0x02, 0x64, 0x00}).Bytes()
)

func TestParser(t *testing.T) {
	corrupted := append([]byte{}, simpleReport...)
	corrupted[len(corrupted)-1] = 0x00

	testCases := []struct {
		name   string
		in     []byte
		expect []parseStep
		remain int
	}{
		{
			name:   "single config frame",
			in:     enableCmd,
			expect: parseSteps().frame(DialectConfig, 0xff, 0x00, 0x01, 0x00).build(),
		},
		{
			name: "back to back dialects",
			in:   concat(simpleReport, enableAck),
			expect: parseSteps().
				frame(DialectReport, 0x02, 0x02, 0x64, 0x00).
				frame(DialectConfig, 0xff, 0x01, 0x00, 0x00, 0x01, 0x00, 0x40, 0x00).
				build(),
		},
		{
			name:   "garbage before header",
			in:     concat([]byte{0x00, 0x11, 0xfd, 0xfc, 0x22, 0xf4}, simpleReport),
			expect: parseSteps().frame(DialectReport, 0x02, 0x02, 0x64, 0x00).build(),
		},
		{
			name: "corrupted trailer resyncs to next frame",
			in:   concat(corrupted, enableCmd),
			expect: parseSteps().
				reject(ReasonTrailer).
				frame(DialectConfig, 0xff, 0x00, 0x01, 0x00).
				build(),
		},
		{
			name: "length out of range",
			in:   concat([]byte{0xfd, 0xfc, 0xfb, 0xfa, 0xff, 0xff}, enableCmd),
			expect: parseSteps().
				reject(ReasonLength).
				frame(DialectConfig, 0xff, 0x00, 0x01, 0x00).
				build(),
		},
		{
			name: "frame below minimum size",
			in:   concat(NewFrame(DialectReport, []byte{0x02}).Bytes(), simpleReport),
			expect: parseSteps().
				reject(ReasonShort).
				frame(DialectReport, 0x02, 0x02, 0x64, 0x00).
				build(),
		},
		{
			name:   "partial header retained",
			in:     []byte{0x01, 0x02, 0xf4, 0xf3},
			remain: 2,
		},
		{
			name:   "incomplete frame retained",
			in:     simpleReport[:9],
			remain: 9,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			parser.Feed(tc.in)
			require.Equal(t, tc.expect, drain(&parser))
			require.Equal(t, tc.remain, parser.Buffered())
		})
	}
}

func TestParserChunkingInvariance(t *testing.T) {
	corrupted := append([]byte{}, enableAck...)
	corrupted[8] = 0x04
	corrupted[len(corrupted)-4] = 0xee
	stream := concat(
		[]byte{0xf4, 0x00},
		simpleReport,
		corrupted,
		[]byte{0xfd, 0xfc},
		enableAck,
		simpleReport,
		[]byte{0xf4, 0xf3, 0xf2},
	)

	var whole Parser
	whole.Feed(stream)
	expect := drain(&whole)
	require.NotEmpty(t, expect)

	for _, size := range []int{1, 2, 3, 5, 7, 13} {
		var parser Parser
		var got []parseStep
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			parser.Feed(stream[i:end])
			got = append(got, drain(&parser)...)
		}
		require.Equalf(t, expect, got, "chunk size %d", size)
		require.Equalf(t, whole.Buffered(), parser.Buffered(), "chunk size %d", size)
	}
}

func TestParserReset(t *testing.T) {
	var parser Parser
	parser.Feed(simpleReport[:8])
	parser.Reset()
	require.Zero(t, parser.Buffered())
	parser.Feed(simpleReport)
	f, err := parser.Next()
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, byte(0x02), f.Type)
}
