package cmdlog

import (
	"bytes"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/gotmc/labequip"
	"github.com/gotmc/labequip/labequiptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsASCII(t *testing.T) {
	assert.True(t, isASCII("KEYSIGHT,33522B,MY123,4.00\r\n"))
	assert.False(t, isASCII("\x00\x01"))
	assert.False(t, isASCII("\xff"))
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Logger: log.New(&buf, "", 0)}
	p.Record("GPIB0::4::INSTR", labequip.DirectionWrite, "*IDN?")
	p.Record("GPIB0::4::INSTR", labequip.DirectionRead, "HP3582A\n")
	p.Record("GPIB0::4::INSTR", labequip.DirectionRead, "\x00\x7f\xff")
	p.Record("GPIB0::4::INSTR", labequip.DirectionRead, "")
	assert.Equal(t, `GPIB0::4::INSTR <- "*IDN?"
GPIB0::4::INSTR -> [7] "HP3582A"
GPIB0::4::INSTR -> [3] "\x00\x7f\xff" (00 7f ff)
GPIB0::4::INSTR -> <no response>
`, buf.String())
}

func TestTranscriptRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return at }
	defer func() { now = time.Now }()

	path := filepath.Join(t.TempDir(), "session.cbor")
	tr, err := Create(path)
	require.NoError(t, err)
	mem := &Memory{}

	f := labequiptest.NewEcho()
	inst := labequiptest.Open("TCPIP0::10.0.0.5::5025::SOCKET", f, labequip.WithRecorder(Tee(tr, mem)))
	require.NoError(t, inst.Write("SOUR1:FREQ 1000"))
	got, err := inst.Query("SOUR1:FREQ?")
	require.NoError(t, err)
	require.Equal(t, "1000", got)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, want := range mem.Entries() {
		assert.Equal(t, want.Address, entries[i].Address)
		assert.Equal(t, want.Msg, entries[i].Msg)
		assert.Equal(t, want.Read, entries[i].Read)
		assert.True(t, want.Time.Equal(entries[i].Time))
	}
	assert.Equal(t, labequip.DirectionWrite, entries[1].Direction())
	assert.Equal(t, labequip.DirectionRead, entries[2].Direction())
	assert.Equal(t, "1000", entries[2].Msg)
	assert.True(t, at.Equal(entries[0].Time))
	assert.Equal(t, `12:00:00.000000 TCPIP0::10.0.0.5::5025::SOCKET -> "1000"`, mem.Entries()[2].String())
}
