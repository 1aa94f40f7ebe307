package search

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/inkleaf/inkleaf/internal/models"
)

// fakeRenderer records render calls without doing real raster work.
type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) Render(group StrokeGroup) image.Image {
	r.calls++
	return image.NewGray(image.Rect(0, 0, 8, 8))
}

// fakeRecognizer returns canned text, or an error when told to fail.
type fakeRecognizer struct {
	text  string
	fail  bool
	calls int
}

func (r *fakeRecognizer) Recognize(img image.Image) (string, error) {
	r.calls++
	if r.fail {
		return "", errors.New("model unavailable")
	}
	return r.text, nil
}

func notebookWithText(content string) *models.Notebook {
	nb := models.NewNotebook()
	nb.Pages[0].AddElement(models.NewText(models.NewPoint(0, 0), content, "#000000", 14))
	return nb
}

// =====================================================
// Inline Indexing Tests
// =====================================================

// TestIndexPage_textAndTranscript verifies text elements and voice
// transcripts are indexed inline.
func TestIndexPage_textAndTranscript(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, nil, nil, 50)

	nb := notebookWithText("typed reminder")
	memo := models.NewVoiceMemo(models.NewPoint(0, 0), 10, 1700000000)
	memo.Transcript = "spoken reminder"
	nb.Pages[0].AddElement(memo)
	empty := models.NewVoiceMemo(models.NewPoint(0, 0), 5, 1700000000)
	nb.Pages[0].AddElement(empty) // no transcript, never indexed

	n, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID)
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if n != 2 {
		t.Errorf("indexed = %d, want 2", n)
	}

	hits, _ := idx.Search("reminder", nil, "", 10)
	if len(hits) != 2 {
		t.Errorf("hits = %d, want 2", len(hits))
	}
	if entry, _ := idx.Entry(empty.ElementID); entry != nil {
		t.Error("transcript-less memo must not be indexed")
	}
}

// TestIndexPage_idempotent verifies a second run with unchanged content
// indexes nothing new.
func TestIndexPage_idempotent(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, nil, nil, 50)
	nb := notebookWithText("stable entry")

	if _, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID); err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	n, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID)
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second pass indexed = %d, want 0", n)
	}
}

// TestIndexPage_removesStale verifies entries for deleted elements are purged.
func TestIndexPage_removesStale(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, nil, nil, 50)

	nb := models.NewNotebook()
	keep := models.NewText(models.NewPoint(0, 0), "keeper", "#000", 14)
	gone := models.NewText(models.NewPoint(0, 0), "goner", "#000", 14)
	nb.Pages[0].AddElement(keep)
	nb.Pages[0].AddElement(gone)

	if _, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID); err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	nb.Pages[0].RemoveElement(gone)
	if _, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID); err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}

	if entry, _ := idx.Entry(gone.ElementID); entry != nil {
		t.Error("deleted element still indexed")
	}
	if entry, _ := idx.Entry(keep.ElementID); entry == nil {
		t.Error("surviving element lost its entry")
	}
}

// =====================================================
// Handwriting Recognition Tests
// =====================================================

// TestIndexPage_recognizesStrokeGroups verifies changed groups flow through
// the renderer and recognizer into searchable entries.
func TestIndexPage_recognizesStrokeGroups(t *testing.T) {
	idx := openTestIndex(t)
	renderer := &fakeRenderer{}
	recognizer := &fakeRecognizer{text: "dear diary"}
	c := NewCoordinator(idx, renderer, recognizer, 50)

	nb := models.NewNotebook()
	nb.Pages[0].AddElement(strokeAt("s-a", 0, 0, 10))
	nb.Pages[0].AddElement(strokeAt("s-b", 20, 0, 10))

	n, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID)
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if n != 1 {
		t.Errorf("indexed = %d, want 1 group entry", n)
	}
	if renderer.calls != 1 || recognizer.calls != 1 {
		t.Errorf("renderer/recognizer calls = %d/%d, want 1/1", renderer.calls, recognizer.calls)
	}

	hits, _ := idx.Search("diary", []string{TypeStrokeGroup}, "", 10)
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if _, ok := ParseBoundingBox(hits[0].BoundingBox); !ok {
		t.Error("group entry must carry its bounding box")
	}

	// Unchanged ink: no re-recognition on the next pass.
	if _, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID); err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if recognizer.calls != 1 {
		t.Errorf("recognizer calls after re-run = %d, want 1", recognizer.calls)
	}
}

// TestIndexPage_emptyRecognitionStored verifies an empty result still lands
// an entry so the hash gates future runs.
func TestIndexPage_emptyRecognitionStored(t *testing.T) {
	idx := openTestIndex(t)
	recognizer := &fakeRecognizer{text: ""}
	c := NewCoordinator(idx, &fakeRenderer{}, recognizer, 50)

	nb := models.NewNotebook()
	nb.Pages[0].AddElement(strokeAt("s-a", 0, 0, 10))

	if _, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID); err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if _, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID); err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if recognizer.calls != 1 {
		t.Errorf("recognizer calls = %d, want 1 (empty result must be cached)", recognizer.calls)
	}
}

// TestIndexPage_recognitionFailureSkips verifies a failed group is skipped
// without failing the page.
func TestIndexPage_recognitionFailureSkips(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, &fakeRenderer{}, &fakeRecognizer{fail: true}, 50)

	nb := notebookWithText("prose survives")
	nb.Pages[0].AddElement(strokeAt("s-a", 0, 0, 10))

	n, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID)
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if n != 1 {
		t.Errorf("indexed = %d, want 1 (text only)", n)
	}
}

// TestIndexPage_nilRecognizerSkipsInk verifies handwriting is left out when
// no recognizer is wired, without error.
func TestIndexPage_nilRecognizerSkipsInk(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, nil, nil, 50)

	nb := models.NewNotebook()
	nb.Pages[0].AddElement(strokeAt("s-a", 0, 0, 10))

	n, err := c.IndexPage(context.Background(), nb.Pages[0], nb.ID)
	if err != nil {
		t.Fatalf("IndexPage() error = %v", err)
	}
	if n != 0 {
		t.Errorf("indexed = %d, want 0", n)
	}
}

// =====================================================
// Batch / Rebuild Tests
// =====================================================

// TestIndexNotebooks_progressAndCancel verifies per-page progress and
// cancellation between pages.
func TestIndexNotebooks_progressAndCancel(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, nil, nil, 50)

	nb := notebookWithText("page one")
	nb.AddPage(models.NewPage())
	nb.AddPage(models.NewPage())

	var calls [][2]int
	_, err := c.IndexNotebooks(context.Background(), []*models.Notebook{nb}, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("IndexNotebooks() error = %v", err)
	}
	if len(calls) != 3 || calls[2] != [2]int{3, 3} {
		t.Errorf("progress calls = %v, want 3 ending at 3/3", calls)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.IndexNotebooks(cancelled, []*models.Notebook{nb}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// TestRebuildIndex_dropsStaleEntries verifies a rebuild starts from nothing.
func TestRebuildIndex_dropsStaleEntries(t *testing.T) {
	idx := openTestIndex(t)
	c := NewCoordinator(idx, nil, nil, 50)

	idx.AddEntry(textEntry("el-orphan", "p-gone", "nb-gone", "orphaned entry"))
	nb := notebookWithText("current entry")

	n, err := c.RebuildIndex(context.Background(), []*models.Notebook{nb}, nil)
	if err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}
	if n != 1 {
		t.Errorf("indexed = %d, want 1", n)
	}
	if hits, _ := idx.Search("orphaned", nil, "", 10); len(hits) != 0 {
		t.Error("rebuild must drop entries with no live source")
	}
	if hits, _ := idx.Search("current", nil, "", 10); len(hits) != 1 {
		t.Error("rebuild must index live content")
	}
}
