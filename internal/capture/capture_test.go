package capture

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/audiolibrelab/irdecode/internal/config"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

type fakePort struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type pipePort struct {
	*io.PipeReader
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Input.CapturesDir = filepath.Join(t.TempDir(), "captures")
	cfg.Capture.Port = "/dev/ttyFAKE0"
	return cfg
}

func newTestRecorder(t *testing.T, port Port) (*SerialRecorder, *serial.Mode) {
	t.Helper()
	var got serial.Mode
	backend := &SerialBackend{
		Open: func(path string, mode *serial.Mode) (Port, error) {
			require.Equal(t, "/dev/ttyFAKE0", path)
			got = *mode
			return port, nil
		},
	}
	rec := backend.NewRecorder(testConfig(t), nil).(*SerialRecorder)
	return rec, &got
}

func TestParseLine(t *testing.T) {
	tests := map[string][]int{
		"4420\n":                  {4420},
		"4420,4380,560, 1600\r\n": {4420, 4380, 560, 1600},
		"+4420 -4380":             {4420, 4380},
		"# receiver ready":        nil,
		"":                        nil,
		"timeout":                 nil,
		"0 560":                   {560},
		"  m4420 s4380  ":         {4420, 4380},
	}
	for line, want := range tests {
		assert.Equal(t, want, ParseLine(line), "line %q", line)
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = PortOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "E", opts.Parity)
	assert.Equal(t, 9600, opts.BaudRate)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.ErrorContains(t, err, "invalid data bits")
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.ErrorContains(t, err, "invalid stop bits")
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.ErrorContains(t, err, "unsupported parity")
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 57600,
		DataBits: 8,
		StopBits: serial.TwoStopBits,
		Parity:   serial.OddParity,
	}, mode)
}

func TestSerialRecorder_CaptureWritesTrace(t *testing.T) {
	port := &fakePort{Reader: strings.NewReader("# ready\n4420,4380\n560 1600\n560\n560")}
	rec, mode := newTestRecorder(t, port)

	status, session := rec.GetStatus()
	assert.Equal(t, StatusStandby, status)
	assert.Nil(t, session)

	require.NoError(t, rec.StartReady("Power On 24"))
	assert.Equal(t, 115200, mode.BaudRate)

	status, session = rec.GetStatus()
	assert.Equal(t, StatusReady, status)
	require.NotNil(t, session)
	assert.Equal(t, "Power_On_24", session.Name)

	require.NoError(t, rec.StartRecording())
	require.NoError(t, rec.Stop())
	assert.True(t, port.isClosed())

	status, session = rec.GetStatus()
	assert.Equal(t, StatusStandby, status)
	assert.Equal(t, 6, session.Durations)

	d, err := trace.Import(session.OutputFile, trace.Options{})
	require.NoError(t, err)
	assert.Equal(t, trace.Durations{4420, 4380, 560, 1600, 560, 560}, d)

	raw, err := os.ReadFile(session.OutputFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "# irdecode serial capture \"Power_On_24\"\n# port: /dev/ttyFAKE0\n"))
}

func TestSerialRecorder_StopClosesBlockingPort(t *testing.T) {
	pr, pw := io.Pipe()
	rec, _ := newTestRecorder(t, pipePort{pr})

	require.NoError(t, rec.StartReady("blocking"))
	require.NoError(t, rec.StartRecording())

	_, err := pw.Write([]byte("4420\n4380\n"))
	require.NoError(t, err)

	require.NoError(t, rec.Stop())
	assert.Equal(t, trace.Durations{4420, 4380}, rec.Durations())
}

// burstPort hands out one burst of data, then blocks until closed.
type burstPort struct {
	data   []byte
	sent   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newBurstPort(data string) *burstPort {
	return &burstPort{data: []byte(data), sent: make(chan struct{}), closed: make(chan struct{})}
}

func (p *burstPort) Read(b []byte) (int, error) {
	if len(p.data) > 0 {
		n := copy(b, p.data)
		p.data = p.data[n:]
		if len(p.data) == 0 {
			close(p.sent)
		}
		return n, nil
	}
	<-p.closed
	return 0, os.ErrClosed
}

func (p *burstPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestSerialRecorder_StopKeepsBufferedLines(t *testing.T) {
	port := newBurstPort("4420\n4380\n560\n1600\n560\n560")
	rec, _ := newTestRecorder(t, port)

	require.NoError(t, rec.StartReady("burst"))
	require.NoError(t, rec.StartRecording())
	<-port.sent

	require.NoError(t, rec.Stop())
	assert.Equal(t, trace.Durations{4420, 4380, 560, 1600, 560, 560}, rec.Durations())

	status, session := rec.GetStatus()
	assert.Equal(t, StatusStandby, status)
	d, err := trace.Import(session.OutputFile, trace.Options{})
	require.NoError(t, err)
	assert.Equal(t, trace.Durations{4420, 4380, 560, 1600, 560, 560}, d)
}

func TestSerialRecorder_NoTimings(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakePort{Reader: strings.NewReader("# nothing\n")})

	require.NoError(t, rec.StartReady("empty"))
	require.NoError(t, rec.StartRecording())
	err := rec.Stop()
	assert.ErrorIs(t, err, ErrNoTimings)

	status, session := rec.GetStatus()
	assert.Equal(t, StatusError, status)
	assert.NoFileExists(t, session.OutputFile)

	// ERROR allows a new session
	assert.NoError(t, rec.StartReady("again"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestSerialRecorder_ReadError(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakePort{Reader: failingReader{}})

	require.NoError(t, rec.StartReady("unplugged"))
	require.NoError(t, rec.StartRecording())
	require.Eventually(t, func() bool {
		status, _ := rec.GetStatus()
		return status == StatusError
	}, time.Second, 5*time.Millisecond)

	err := rec.Stop()
	assert.ErrorContains(t, err, "device unplugged")
}

func TestSerialRecorder_StateTransitions(t *testing.T) {
	port := &fakePort{Reader: strings.NewReader("")}
	rec, _ := newTestRecorder(t, port)

	assert.Error(t, rec.StartRecording())
	assert.Error(t, rec.Stop())
	assert.Error(t, rec.CancelReady())
	assert.ErrorContains(t, rec.StartReady("!!!"), "capture name is required")

	require.NoError(t, rec.StartReady("cancel me"))
	assert.Error(t, rec.StartReady("twice"))
	require.NoError(t, rec.CancelReady())
	assert.True(t, port.isClosed())

	status, session := rec.GetStatus()
	assert.Equal(t, StatusStandby, status)
	assert.Nil(t, session)
}

func TestSerialRecorder_OpenFailure(t *testing.T) {
	backend := &SerialBackend{
		Open: func(string, *serial.Mode) (Port, error) {
			return nil, errors.New("permission denied")
		},
	}
	rec := backend.NewRecorder(testConfig(t), nil)

	err := rec.StartReady("x")
	assert.ErrorContains(t, err, "permission denied")
	status, _ := rec.GetStatus()
	assert.Equal(t, StatusError, status)
}

func TestSerialRecorder_Cleanup(t *testing.T) {
	pr, _ := io.Pipe()
	rec, _ := newTestRecorder(t, pipePort{pr})

	require.NoError(t, rec.StartReady("cleanup"))
	require.NoError(t, rec.StartRecording())
	require.NoError(t, rec.Cleanup())

	status, _ := rec.GetStatus()
	assert.Equal(t, StatusStandby, status)
}

func TestSerialBackend_Sources(t *testing.T) {
	backend := &SerialBackend{
		List: func() ([]string, error) {
			return []string{"/dev/ttyUSB1", "/dev/ttyACM0"}, nil
		},
	}

	ports, err := backend.ListSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyUSB1"}, ports)

	assert.NoError(t, backend.ValidateSource("/dev/ttyACM0"))
	assert.ErrorContains(t, backend.ValidateSource("/dev/ttyS9"), "port not found")
	assert.ErrorContains(t, backend.ValidateSource(""), "no serial port configured")
	assert.Equal(t, BackendTypeSerial, backend.GetType())

	failing := &SerialBackend{List: func() ([]string, error) { return nil, errors.New("no sysfs") }}
	_, err = failing.ListSources()
	assert.ErrorContains(t, err, "no sysfs")
}
