package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/shared"
	tu "github.com/desertthunder/nifx/internal/testing"
	"github.com/desertthunder/nifx/internal/volume"
)

var layout = shared.DefaultConfig().Layout

const (
	testGroup = "ISPY2-100"
	testDate  = "01-02-2020"
)

var (
	framesOnly = map[string]string{
		"series/":         "",
		"series/0001.dcm": "frame-1",
		"series/0002.DCM": "frame-2",
	}
	framesWithExtras = map[string]string{
		"series/0001.dcm": "frame-1",
		"readme.txt":      "extra",
	}
	noFrames = map[string]string{
		"notes.txt": "nothing to decode",
	}
)

// fakeDecoder stacks one 1x1 slice per frame path.
type fakeDecoder struct {
	err   error
	block bool // wait for the unit deadline
	calls atomic.Int32
}

func (d *fakeDecoder) Decode(ctx context.Context, paths []string) (*volume.Volume, error) {
	d.calls.Add(1)
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.err != nil {
		return nil, d.err
	}
	return &volume.Volume{Width: 1, Height: 1, Depth: len(paths), Voxels: make([]int32, len(paths))}, nil
}

type fakeEncoder struct {
	err error
}

func (e *fakeEncoder) Encode(vol *volume.Volume, dst string) error {
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(dst, fmt.Appendf(nil, "volume depth=%d", vol.Depth), 0644)
}

type fakeRunRecorder struct {
	createErr error
	created   []*models.Run
	completed []*models.Run
}

func (r *fakeRunRecorder) Create(run *models.Run) error {
	if r.createErr != nil {
		return r.createErr
	}
	run.Sequence = len(r.created) + 1
	r.created = append(r.created, run)
	return nil
}

func (r *fakeRunRecorder) Complete(run *models.Run) error {
	r.completed = append(r.completed, run)
	return nil
}

type fakeOutcomeRecorder struct {
	mu      sync.Mutex
	err     error
	records map[string][]models.Outcome
}

func (r *fakeOutcomeRecorder) Record(runID string, o models.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.records == nil {
		r.records = make(map[string][]models.Outcome)
	}
	r.records[runID] = append(r.records[runID], o)
	return nil
}

func newTestPipeline(dec volume.Decoder, enc volume.Encoder) *Pipeline {
	return NewPipeline(PipelineOpts{Layout: layout, Decoder: dec, Encoder: enc})
}

// newUnit writes the archive and sidecar for id under in and returns its descriptor.
func newUnit(t *testing.T, in, out, id string, files map[string]string) models.Unit {
	t.Helper()
	u := models.Unit{GroupID: testGroup, DateKey: testDate, UnitID: id, InputRoot: in, OutputRoot: out}
	tu.MustWriteZip(t, u.ArchivePath(layout.ArchiveExt), files)
	tu.MustWriteFile(t, u.SidecarPath(layout.SidecarExt), `{"id":"`+id+`"}`)
	return u
}

// newCorruptUnit writes bytes that are not a zip archive.
func newCorruptUnit(t *testing.T, in, out, id string) models.Unit {
	t.Helper()
	u := models.Unit{GroupID: testGroup, DateKey: testDate, UnitID: id, InputRoot: in, OutputRoot: out}
	tu.MustWriteFile(t, u.ArchivePath(layout.ArchiveExt), "PK\x03\x04 truncated")
	tu.MustWriteFile(t, u.SidecarPath(layout.SidecarExt), "{}")
	return u
}

func assertKind(t *testing.T, o models.Outcome, want models.OutcomeKind) {
	t.Helper()
	if o.Kind != want {
		t.Fatalf("outcome = %s (err: %v), want %s", o.Kind, o.Err, want)
	}
}

func assertCause(t *testing.T, o models.Outcome, want error) {
	t.Helper()
	if !errors.Is(o.Err, want) {
		t.Errorf("outcome error = %v, want %v", o.Err, want)
	}
}
