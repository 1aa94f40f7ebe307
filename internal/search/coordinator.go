package search

import (
	"context"
	"time"

	"github.com/inkleaf/inkleaf/internal/logging"
	"github.com/inkleaf/inkleaf/internal/models"
)

// ItemProgress reports processed vs total items, monotonically non-decreasing.
type ItemProgress func(done, total int)

// Coordinator drives per-page indexing: text and voice transcripts are
// indexed inline, changed stroke groups are handed to the recognizer as jobs
// over a channel and their results merged back as entries. The renderer and
// recognizer are explicit capabilities with caller-owned lifecycle.
type Coordinator struct {
	index      *Index
	renderer   Renderer
	recognizer Recognizer
	gap        float64
}

// NewCoordinator creates a coordinator over an open index. renderer and
// recognizer may be nil, in which case handwriting is not indexed.
func NewCoordinator(index *Index, renderer Renderer, recognizer Recognizer, gap float64) *Coordinator {
	if gap <= 0 {
		gap = 50.0
	}
	return &Coordinator{
		index:      index,
		renderer:   renderer,
		recognizer: recognizer,
		gap:        gap,
	}
}

// Index returns the underlying index.
func (c *Coordinator) Index() *Index {
	return c.index
}

// IndexNotebooks indexes every page of every notebook. Progress is reported
// per page; cancellation is checked between pages.
func (c *Coordinator) IndexNotebooks(ctx context.Context, notebooks []*models.Notebook, progress ItemProgress) (int, error) {
	total := 0
	for _, nb := range notebooks {
		total += len(nb.Pages)
	}

	indexed := 0
	done := 0
	for _, nb := range notebooks {
		for _, p := range nb.Pages {
			if err := ctx.Err(); err != nil {
				return indexed, err
			}
			n, err := c.IndexPage(ctx, p, nb.ID)
			if err != nil {
				return indexed, err
			}
			indexed += n
			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return indexed, nil
}

// IndexPage brings the index up to date for one page and returns how many
// entries were added or refreshed. Entries whose source element vanished
// from the page are removed.
func (c *Coordinator) IndexPage(ctx context.Context, page *models.Page, notebookID string) (int, error) {
	indexed := 0
	live := map[string]bool{}
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	for _, el := range page.Elements {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		var content, elementType string
		switch e := el.(type) {
		case *models.Text:
			content = e.Content
			elementType = string(models.TypeText)
		case *models.VoiceMemo:
			content = e.Transcript
			elementType = string(models.TypeVoiceMemo)
		default:
			continue
		}
		if content == "" {
			continue
		}

		live[el.ID()] = true
		hash := ComputeContentHash(content)
		stored, err := c.index.ContentHash(el.ID())
		if err != nil {
			return indexed, err
		}
		if stored == hash {
			continue
		}
		if err := c.index.AddEntry(SearchEntry{
			ElementID:   el.ID(),
			PageID:      page.ID,
			NotebookID:  notebookID,
			ElementType: elementType,
			TextContent: content,
			ContentHash: hash,
			LastIndexed: now,
		}); err != nil {
			return indexed, err
		}
		indexed++
	}

	n, err := c.indexStrokeGroups(ctx, page, notebookID, live)
	indexed += n
	if err != nil {
		return indexed, err
	}

	// Purge entries whose element or group no longer exists on the page.
	existing, err := c.index.IndexedElementIDs(page.ID, nil)
	if err != nil {
		return indexed, err
	}
	for _, id := range existing {
		if !live[id] {
			if err := c.index.RemoveEntry(id); err != nil {
				return indexed, err
			}
		}
	}
	return indexed, nil
}

type recognitionResult struct {
	group StrokeGroup
	text  string
	err   error
}

// indexStrokeGroups groups the page's strokes and runs recognition for
// groups whose content changed. Jobs flow to a worker goroutine over a
// channel; results are merged back here. Cancellation stops both sides.
func (c *Coordinator) indexStrokeGroups(ctx context.Context, page *models.Page, notebookID string, live map[string]bool) (int, error) {
	groups := GroupStrokes(page.Strokes(), c.gap)
	if len(groups) == 0 {
		return 0, nil
	}

	var pending []StrokeGroup
	for _, g := range groups {
		groupID := g.GroupID()
		live[groupID] = true
		stored, err := c.index.ContentHash(groupID)
		if err != nil {
			return 0, err
		}
		if stored != g.ContentHash() {
			pending = append(pending, g)
		}
	}
	if len(pending) == 0 || c.renderer == nil || c.recognizer == nil {
		return 0, nil
	}

	jobs := make(chan StrokeGroup)
	results := make(chan recognitionResult)

	go func() {
		defer close(jobs)
		for _, g := range pending {
			select {
			case jobs <- g:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer close(results)
		for g := range jobs {
			img := c.renderer.Render(g)
			text, err := c.recognizer.Recognize(img)
			select {
			case results <- recognitionResult{group: g, text: text, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	indexed := 0
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	for res := range results {
		if res.err != nil {
			logging.Warn("stroke group recognition failed", map[string]interface{}{
				"group_id": res.group.GroupID(),
				"error":    res.err.Error(),
			})
			continue
		}
		// Empty recognition still gets an entry so the content hash
		// prevents re-running on unchanged ink.
		if err := c.index.AddEntry(SearchEntry{
			ElementID:   res.group.GroupID(),
			PageID:      page.ID,
			NotebookID:  notebookID,
			ElementType: TypeStrokeGroup,
			TextContent: res.text,
			BoundingBox: res.group.Bounds.JSON(),
			ContentHash: res.group.ContentHash(),
			LastIndexed: now,
		}); err != nil {
			return indexed, err
		}
		indexed++
	}
	if err := ctx.Err(); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// RebuildIndex drops everything, deletes the index file, and re-indexes the
// given notebooks from scratch.
func (c *Coordinator) RebuildIndex(ctx context.Context, notebooks []*models.Notebook, progress ItemProgress) (int, error) {
	if err := c.index.Reset(); err != nil {
		return 0, err
	}
	indexed, err := c.IndexNotebooks(ctx, notebooks, progress)
	if err != nil {
		return indexed, err
	}
	return indexed, c.index.Save()
}
