// Package directive holds the process-wide DirectiveRegistry. spec.md §4.5
// calls out a known historical defect where the API and the workers each
// held their own copy of this map, so directives silently no-op'd: the
// Registry here is constructed once in cmd/worker/main.go and the same
// pointer is injected into the API server and every CameraWorker. Nothing in
// this package exposes a package-level instance.
package directive

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel-worker-go/internal/models"
)

// Registry is a single shared map from directive id to Directive. One writer
// (the API handler) and many readers (CameraWorkers) are expected; reads
// return independent snapshots so callers never hold the lock across
// iteration.
type Registry struct {
	mu         sync.RWMutex
	directives map[string]models.Directive
}

// NewRegistry constructs an empty Registry. Call once per process and share
// the pointer.
func NewRegistry() *Registry {
	return &Registry{directives: make(map[string]models.Directive)}
}

// Add creates and stores a new active Directive from req, returning it.
func (r *Registry) Add(req models.DirectiveRequest, now time.Time) models.Directive {
	scope := models.CameraScope{All: true}
	if req.CameraScope != nil {
		scope = *req.CameraScope
	}

	d := models.Directive{
		ID:               uuid.NewString(),
		Kind:             req.Kind,
		Target:           req.Target,
		RequiresBaseline: req.RequiresBaseline || req.Kind.RequiresBaseline(),
		CameraScope:      scope,
		CreatedAt:        now,
		Status:           models.DirectiveStatusActive,
	}

	r.mu.Lock()
	r.directives[d.ID] = d
	r.mu.Unlock()

	return d
}

// Remove deletes a directive by id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.directives, id)
	r.mu.Unlock()
}

// Get returns the directive with the given id, if it is still registered.
func (r *Registry) Get(id string) (models.Directive, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.directives[id]
	return d, ok
}

// ListForCamera returns every active directive whose scope matches cameraID.
func (r *Registry) ListForCamera(cameraID string) []models.Directive {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Directive
	for _, d := range r.directives {
		if d.Status == models.DirectiveStatusActive && d.CameraScope.Matches(cameraID) {
			out = append(out, d)
		}
	}
	return out
}

// All returns a snapshot of every registered directive, for the list API.
func (r *Registry) All() []models.Directive {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Directive, 0, len(r.directives))
	for _, d := range r.directives {
		out = append(out, d)
	}
	return out
}
