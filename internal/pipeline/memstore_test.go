package pipeline

import (
	"context"
	"sync"

	"github.com/samber/lo"

	mergecommitModel "github.com/festy23/patch_integrator/internal/mergecommit/model"
	projectModel "github.com/festy23/patch_integrator/internal/project/model"
	refactoringModel "github.com/festy23/patch_integrator/internal/refactoring/model"
	"github.com/festy23/patch_integrator/internal/store"
)

// memDB is an in-memory store.Provider. failures makes the named operation
// return the given error until it is removed.
type memDB struct {
	mu     sync.Mutex
	nextID int64

	projects     []projectModel.Project
	patches      []projectModel.Patch
	mergeCommits []mergecommitModel.MergeCommit
	files        []mergecommitModel.ConflictingJavaFile
	regions      []mergecommitModel.ConflictingRegion
	histories    []mergecommitModel.ConflictingRegionHistory
	refCommits   []refactoringModel.RefactoringCommit
	refactorings map[int64][]refactoringModel.Detected

	failures map[string]error
	// commitRead runs after FindOrCreateCommit returned, outside the lock.
	commitRead func(hash string)
}

func newMemDB() *memDB {
	return &memDB{refactorings: map[int64][]refactoringModel.Detected{}, failures: map[string]error{}}
}

func (m *memDB) WithStore(_ context.Context, fn func(*store.Store) error) error {
	return fn(&store.Store{
		Projects:     memProjects{m},
		MergeCommits: memMergeCommits{m},
		Refactorings: memRefactorings{m},
	})
}

func (m *memDB) fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *memDB) heal(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, op)
}

func (m *memDB) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memDB) project(forkURL string) projectModel.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := lo.Find(m.projects, func(p projectModel.Project) bool { return p.ForkURL == forkURL })
	return p
}

// finalize stores detected for hash and marks it processed, as a worker of
// another project sharing the commit would.
func (m *memDB) finalize(hash string, detected []refactoringModel.Detected) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rc := range m.refCommits {
		if rc.CommitHash == hash {
			m.refactorings[rc.ID] = detected
			m.refCommits[i].IsProcessed = true
		}
	}
}

func (m *memDB) refactoringCommit(hash string) refactoringModel.RefactoringCommit {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, _ := lo.Find(m.refCommits, func(rc refactoringModel.RefactoringCommit) bool { return rc.CommitHash == hash })
	return rc
}

// memCounts is a comparable snapshot of every table.
type memCounts struct {
	Projects, Patches, MergeCommits, Files, Regions, Histories, RefactoringCommits, Refactorings int
}

func (m *memDB) counts() memCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	refactorings := 0
	for _, d := range m.refactorings {
		refactorings += len(d)
	}
	return memCounts{
		Projects:           len(m.projects),
		Patches:            len(m.patches),
		MergeCommits:       len(m.mergeCommits),
		Files:              len(m.files),
		Regions:            len(m.regions),
		Histories:          len(m.histories),
		RefactoringCommits: len(m.refCommits),
		Refactorings:       refactorings,
	}
}

type memProjects struct{ m *memDB }

func (r memProjects) FindOrCreate(_ context.Context, p projectModel.Project) (*projectModel.Project, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failures["Projects.FindOrCreate"]; err != nil {
		return nil, false, err
	}
	for _, existing := range r.m.projects {
		if existing.ForkURL == p.ForkURL {
			return &existing, false, nil
		}
	}
	p.ID = r.m.id()
	p.IsDone = false
	r.m.projects = append(r.m.projects, p)
	return &p, true, nil
}

func (r memProjects) GetByForkURL(_ context.Context, forkURL string) (*projectModel.Project, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.projects {
		if p.ForkURL == forkURL {
			return &p, nil
		}
	}
	return nil, projectModel.ErrProjectNotFound
}

func (r memProjects) MarkDone(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.projects {
		if r.m.projects[i].ID == id {
			r.m.projects[i].IsDone = true
			return nil
		}
	}
	return projectModel.ErrProjectNotFound
}

func (r memProjects) List(context.Context) ([]projectModel.Project, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]projectModel.Project(nil), r.m.projects...), nil
}

func (r memProjects) FindOrCreatePatch(_ context.Context, projectID int64, number int) (*projectModel.Patch, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.patches {
		if p.ProjectID == projectID && p.Number == number {
			return &p, nil
		}
	}
	p := projectModel.Patch{ID: r.m.id(), ProjectID: projectID, Number: number}
	r.m.patches = append(r.m.patches, p)
	return &p, nil
}

func (r memProjects) MarkPatchDone(_ context.Context, id int64, isConflicting bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.patches {
		if r.m.patches[i].ID == id {
			if !r.m.patches[i].IsDone {
				r.m.patches[i].IsConflicting = isConflicting
				r.m.patches[i].IsDone = true
			}
			return nil
		}
	}
	return projectModel.ErrPatchNotFound
}

type memMergeCommits struct{ m *memDB }

func (r memMergeCommits) FindByHash(_ context.Context, projectID int64, hash string) (*mergecommitModel.MergeCommit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, mc := range r.m.mergeCommits {
		if mc.ProjectID == projectID && mc.CommitHash == hash {
			return &mc, nil
		}
	}
	return nil, mergecommitModel.ErrMergeCommitNotFound
}

func (r memMergeCommits) Create(_ context.Context, mc *mergecommitModel.MergeCommit) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.mergeCommits {
		if existing.ProjectID == mc.ProjectID && existing.CommitHash == mc.CommitHash {
			return mergecommitModel.ErrMergeCommitExists
		}
	}
	mc.ID = r.m.id()
	mc.IsDone = false
	r.m.mergeCommits = append(r.m.mergeCommits, *mc)
	return nil
}

func (r memMergeCommits) MarkDone(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.mergeCommits {
		if r.m.mergeCommits[i].ID == id {
			r.m.mergeCommits[i].IsDone = true
			return nil
		}
	}
	return mergecommitModel.ErrMergeCommitNotFound
}

func (r memMergeCommits) DeleteCascade(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	before := len(r.m.mergeCommits)
	r.m.histories = lo.Reject(r.m.histories, func(h mergecommitModel.ConflictingRegionHistory, _ int) bool {
		return h.MergeCommitID == id
	})
	r.m.regions = lo.Reject(r.m.regions, func(c mergecommitModel.ConflictingRegion, _ int) bool {
		return c.MergeCommitID == id
	})
	r.m.files = lo.Reject(r.m.files, func(f mergecommitModel.ConflictingJavaFile, _ int) bool {
		return f.MergeCommitID == id
	})
	r.m.mergeCommits = lo.Reject(r.m.mergeCommits, func(mc mergecommitModel.MergeCommit, _ int) bool {
		return mc.ID == id
	})
	if len(r.m.mergeCommits) == before {
		return mergecommitModel.ErrMergeCommitNotFound
	}
	return nil
}

func (r memMergeCommits) CreateFile(_ context.Context, f *mergecommitModel.ConflictingJavaFile) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f.ID = r.m.id()
	r.m.files = append(r.m.files, *f)
	return nil
}

func (r memMergeCommits) CreateRegion(_ context.Context, region *mergecommitModel.ConflictingRegion) error {
	if err := region.Validate(); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	region.ID = r.m.id()
	r.m.regions = append(r.m.regions, *region)
	return nil
}

func (r memMergeCommits) CreateHistory(_ context.Context, events []mergecommitModel.ConflictingRegionHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.failures["MergeCommits.CreateHistory"]; err != nil {
		return err
	}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	for _, e := range events {
		e.ID = r.m.id()
		r.m.histories = append(r.m.histories, e)
	}
	return nil
}

func (r memMergeCommits) DistinctHistoryCommits(_ context.Context, projectID int64) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	done := map[int64]bool{}
	for _, mc := range r.m.mergeCommits {
		done[mc.ID] = mc.IsDone
	}
	var hashes []string
	for _, h := range r.m.histories {
		if h.ProjectID == projectID && done[h.MergeCommitID] {
			hashes = append(hashes, h.CommitHash)
		}
	}
	return lo.Uniq(hashes), nil
}

type memRefactorings struct{ m *memDB }

func (r memRefactorings) FindOrCreateCommit(_ context.Context, projectID int64, hash string) (*refactoringModel.RefactoringCommit, error) {
	if hash == "" {
		return nil, refactoringModel.ErrInvalidCommitHash
	}
	rc := r.findOrCreate(projectID, hash)
	if r.m.commitRead != nil {
		r.m.commitRead(hash)
	}
	return &rc, nil
}

func (r memRefactorings) findOrCreate(projectID int64, hash string) refactoringModel.RefactoringCommit {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rc := range r.m.refCommits {
		if rc.CommitHash == hash {
			return rc
		}
	}
	rc := refactoringModel.RefactoringCommit{ID: r.m.id(), ProjectID: projectID, CommitHash: hash}
	r.m.refCommits = append(r.m.refCommits, rc)
	return rc
}

func (r memRefactorings) PurgeRefactorings(_ context.Context, commitID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, err := r.pending(commitID); err != nil {
		return err
	}
	delete(r.m.refactorings, commitID)
	return nil
}

func (r memRefactorings) pending(commitID int64) (int, error) {
	for i, rc := range r.m.refCommits {
		if rc.ID == commitID {
			if rc.Terminal() {
				return 0, refactoringModel.ErrAlreadyTerminal
			}
			return i, nil
		}
	}
	return 0, refactoringModel.ErrRefactoringCommitNotFound
}

func (r memRefactorings) SaveResults(_ context.Context, commitID int64, detected []refactoringModel.Detected) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i, err := r.pending(commitID)
	if err != nil {
		return err
	}
	r.m.refactorings[commitID] = append([]refactoringModel.Detected(nil), detected...)
	r.m.refCommits[i].IsProcessed = true
	return nil
}

func (r memRefactorings) MarkTimedOut(_ context.Context, commitID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	i, err := r.pending(commitID)
	if err != nil {
		return err
	}
	delete(r.m.refactorings, commitID)
	r.m.refCommits[i].IsTimedOut = true
	return nil
}
