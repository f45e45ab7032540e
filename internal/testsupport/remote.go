package testsupport

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"capturesync/internal/upload"
)

// Operations recorded by FakeRemote and accepted by its failure injectors.
const (
	OpFindFolder   = "find_folder"
	OpCreateFolder = "create_folder"
	OpFindFiles    = "find_files"
	OpDeleteFile   = "delete_file"
	OpCreateFile   = "create_file"
)

// FakeFolder is a folder held by FakeRemote.
type FakeFolder struct {
	ID     upload.FolderRef
	Name   string
	Parent upload.FolderRef
}

// FakeFile is a file held by FakeRemote.
type FakeFile struct {
	ID        string
	Name      string
	Parent    upload.FolderRef
	MediaType string
	Body      []byte
}

// FakeRemote is an in-memory upload.Remote with failure injection.
type FakeRemote struct {
	mu       sync.Mutex
	seq      int
	folders  []FakeFolder
	files    map[string]FakeFile
	calls    []string
	next     map[string][]error
	always   map[string]error
	perFile  map[string]error
	OnCreate func(name string)
}

// NewFakeRemote returns an empty remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		files:   make(map[string]FakeFile),
		next:    make(map[string][]error),
		always:  make(map[string]error),
		perFile: make(map[string]error),
	}
}

// FailNext queues err for the next call of op.
func (r *FakeRemote) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next[op] = append(r.next[op], err)
}

// FailAlways makes every call of op return err. A nil err clears it.
func (r *FakeRemote) FailAlways(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.always, op)
		return
	}
	r.always[op] = err
}

// FailFile makes CreateFile fail for files named name. A nil err clears it.
func (r *FakeRemote) FailFile(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.perFile, name)
		return
	}
	r.perFile[name] = err
}

func (r *FakeRemote) begin(op, target string) error {
	r.calls = append(r.calls, op+":"+target)
	if queued := r.next[op]; len(queued) > 0 {
		r.next[op] = queued[1:]
		return queued[0]
	}
	return r.always[op]
}

func (r *FakeRemote) newID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *FakeRemote) FindFolder(_ context.Context, name string, parent upload.FolderRef) (upload.FolderRef, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(OpFindFolder, name); err != nil {
		return "", false, err
	}
	for _, folder := range r.folders {
		if folder.Name == name && folder.Parent == parent {
			return folder.ID, true, nil
		}
	}
	return "", false, nil
}

func (r *FakeRemote) CreateFolder(_ context.Context, name string, parent upload.FolderRef) (upload.FolderRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(OpCreateFolder, name); err != nil {
		return "", err
	}
	folder := FakeFolder{ID: upload.FolderRef(r.newID("folder")), Name: name, Parent: parent}
	r.folders = append(r.folders, folder)
	return folder.ID, nil
}

func (r *FakeRemote) FindFiles(_ context.Context, name string, parent upload.FolderRef) ([]upload.RemoteFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(OpFindFiles, name); err != nil {
		return nil, err
	}
	var out []upload.RemoteFile
	for _, file := range r.sortedFiles() {
		if file.Name == name && file.Parent == parent {
			out = append(out, upload.RemoteFile{ID: file.ID, Name: file.Name})
		}
	}
	return out, nil
}

func (r *FakeRemote) DeleteFile(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(OpDeleteFile, id); err != nil {
		return err
	}
	if _, ok := r.files[id]; !ok {
		return fmt.Errorf("file %s not found", id)
	}
	delete(r.files, id)
	return nil
}

func (r *FakeRemote) CreateFile(_ context.Context, name string, parent upload.FolderRef, mediaType string, body io.Reader) (string, error) {
	data, readErr := io.ReadAll(body)

	r.mu.Lock()
	if err := r.begin(OpCreateFile, name); err != nil {
		r.mu.Unlock()
		return "", err
	}
	if err := r.perFile[name]; err != nil {
		r.mu.Unlock()
		return "", err
	}
	if readErr != nil {
		r.mu.Unlock()
		return "", readErr
	}
	file := FakeFile{ID: r.newID("file"), Name: name, Parent: parent, MediaType: mediaType, Body: data}
	r.files[file.ID] = file
	hook := r.OnCreate
	r.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return file.ID, nil
}

// Calls returns the recorded "op:target" call log.
func (r *FakeRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CallCount counts calls of op.
func (r *FakeRemote) CallCount(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	prefix := op + ":"
	for _, call := range r.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Folders returns every folder named name under parent.
func (r *FakeRemote) Folders(name string, parent upload.FolderRef) []FakeFolder {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FakeFolder
	for _, folder := range r.folders {
		if folder.Name == name && folder.Parent == parent {
			out = append(out, folder)
		}
	}
	return out
}

// FolderCount reports how many folders exist in total.
func (r *FakeRemote) FolderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.folders)
}

// FilesIn returns the files stored under parent ordered by id.
func (r *FakeRemote) FilesIn(parent upload.FolderRef) []FakeFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FakeFile
	for _, file := range r.sortedFiles() {
		if file.Parent == parent {
			out = append(out, file)
		}
	}
	return out
}

// Seed stores a file directly, bypassing failure injection and the call log.
func (r *FakeRemote) Seed(name string, parent upload.FolderRef, body []byte) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	file := FakeFile{ID: r.newID("file"), Name: name, Parent: parent, Body: body}
	r.files[file.ID] = file
	return file.ID
}

func (r *FakeRemote) sortedFiles() []FakeFile {
	out := make([]FakeFile, 0, len(r.files))
	for _, file := range r.files {
		out = append(out, file)
	}
	sort.Slice(out, func(i, j int) bool {
		return fileSeq(out[i].ID) < fileSeq(out[j].ID)
	})
	return out
}

func fileSeq(id string) int {
	var n int
	_, _ = fmt.Sscanf(id, "file-%d", &n)
	return n
}

// FakeConnector hands out a fixed remote or a fixed error.
type FakeConnector struct {
	mu     sync.Mutex
	Remote upload.Remote
	Err    error
	calls  int
}

func (c *FakeConnector) Connect(context.Context) (upload.Remote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Remote, nil
}

// SetErr replaces the connect error.
func (c *FakeConnector) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// Calls reports how many times Connect ran.
func (c *FakeConnector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
