package hostfunc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/andyherbert/crabzilla/value"
)

// MountMode defines the permission level for a mount point.
type MountMode int

const (
	// MountReadOnly allows only read operations.
	MountReadOnly MountMode = iota
	// MountReadWrite allows read and write operations to existing files.
	MountReadWrite
	// MountReadWriteCreate additionally allows creating files and dirs.
	MountReadWriteCreate
)

// Mount maps a virtual path seen by guest code to a host path.
type Mount struct {
	VirtualPath string
	HostPath    string
	Mode        MountMode
}

const (
	DefaultFSMaxFileSize  = 10 << 20 // 10MB
	DefaultFSMaxWriteSize = 10 << 20
	DefaultFSMaxPathLen   = 4096
)

// FS provides filesystem operations restricted to explicit mount points.
type FS struct {
	mounts       []Mount
	maxFileSize  int64
	maxWriteSize int64
	maxPathLen   int
}

// FSOption adjusts FS limits.
type FSOption func(*FS)

// WithMaxFileSize caps the size of files returned by read.
func WithMaxFileSize(n int64) FSOption {
	return func(f *FS) { f.maxFileSize = n }
}

// WithMaxWriteSize caps the content size accepted by write.
func WithMaxWriteSize(n int64) FSOption {
	return func(f *FS) { f.maxWriteSize = n }
}

// WithMaxPathLength caps the length of guest-supplied paths.
func WithMaxPathLength(n int) FSOption {
	return func(f *FS) { f.maxPathLen = n }
}

// NewFS creates a filesystem handler with the given mount points. Mounts
// whose host path cannot be resolved are dropped.
func NewFS(mounts []Mount, opts ...FSOption) *FS {
	normalized := make([]Mount, 0, len(mounts))
	for _, m := range mounts {
		vp := "/" + strings.Trim(m.VirtualPath, "/")
		hp, err := filepath.Abs(m.HostPath)
		if err != nil {
			continue
		}
		normalized = append(normalized, Mount{VirtualPath: vp, HostPath: hp, Mode: m.Mode})
	}

	f := &FS{
		mounts:       normalized,
		maxFileSize:  DefaultFSMaxFileSize,
		maxWriteSize: DefaultFSMaxWriteSize,
		maxPathLen:   DefaultFSMaxPathLen,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Entries exposes the filesystem operations under the given scope:
// read(path), write(path, content), list(path), exists(path), mkdir(path),
// remove(path), stat(path).
func (f *FS) Entries(scope string) []Entry {
	return []Entry{
		{Scope: scope, Name: "read", Fn: f.read},
		{Scope: scope, Name: "write", Fn: f.write},
		{Scope: scope, Name: "list", Fn: f.list},
		{Scope: scope, Name: "exists", Fn: f.exists},
		{Scope: scope, Name: "mkdir", Fn: f.mkdir},
		{Scope: scope, Name: "remove", Fn: f.remove},
		{Scope: scope, Name: "stat", Fn: f.stat},
	}
}

func (f *FS) pathArg(args []value.Value) (string, error) {
	if len(args) == 0 {
		return "", errors.New("path required")
	}
	path, err := args[0].AsString()
	if err != nil {
		return "", errors.New("path must be a string")
	}
	if len(path) > f.maxPathLen {
		return "", errors.New("path exceeds max length")
	}
	return path, nil
}

// resolve maps a virtual path to a host path, checking mount permissions
// and rejecting escapes via "..".
func (f *FS) resolve(virtualPath string, needWrite bool) (string, *Mount, error) {
	vp := filepath.Clean("/" + strings.TrimPrefix(virtualPath, "/"))

	for i := range f.mounts {
		m := &f.mounts[i]
		if vp != m.VirtualPath && !strings.HasPrefix(vp, m.VirtualPath+"/") {
			continue
		}
		if needWrite && m.Mode == MountReadOnly {
			return "", nil, errors.New("permission denied: read-only mount")
		}

		relPath := strings.TrimPrefix(vp, m.VirtualPath)
		hostPath, err := filepath.Abs(filepath.Join(m.HostPath, relPath))
		if err != nil {
			return "", nil, errors.New("invalid path")
		}
		if hostPath != m.HostPath && !strings.HasPrefix(hostPath, m.HostPath+string(filepath.Separator)) {
			return "", nil, errors.New("permission denied: path escape attempt")
		}
		return hostPath, m, nil
	}

	return "", nil, errors.New("permission denied: path not in any mount")
}

func (f *FS) read(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	hostPath, _, err := f.resolve(path, false)
	if err != nil {
		return value.Undefined(), err
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return value.Undefined(), errors.New("file not found: " + path)
		}
		return value.Undefined(), errors.New("read error: " + err.Error())
	}
	if info.Size() > f.maxFileSize {
		return value.Undefined(), errors.New("file exceeds max size")
	}

	data, err := os.ReadFile(hostPath)
	if err != nil {
		return value.Undefined(), errors.New("read error: " + err.Error())
	}
	return value.String(string(data)), nil
}

func (f *FS) write(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	if len(args) < 2 {
		return value.Undefined(), errors.New("content required")
	}
	content, err := args[1].AsString()
	if err != nil {
		return value.Undefined(), errors.New("content must be a string")
	}
	if int64(len(content)) > f.maxWriteSize {
		return value.Undefined(), errors.New("content exceeds max size")
	}

	hostPath, mount, err := f.resolve(path, true)
	if err != nil {
		return value.Undefined(), err
	}

	if _, statErr := os.Stat(hostPath); os.IsNotExist(statErr) {
		if mount.Mode != MountReadWriteCreate {
			return value.Undefined(), errors.New("permission denied: cannot create new files")
		}
	}

	if err := os.WriteFile(hostPath, []byte(content), 0644); err != nil {
		return value.Undefined(), errors.New("write error: " + err.Error())
	}
	return value.Undefined(), nil
}

func (f *FS) list(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	hostPath, _, err := f.resolve(path, false)
	if err != nil {
		return value.Undefined(), err
	}

	entries, err := os.ReadDir(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return value.Undefined(), errors.New("directory not found: " + path)
		}
		return value.Undefined(), errors.New("list error: " + err.Error())
	}

	result := make([]value.Value, 0, len(entries))
	for _, entry := range entries {
		item := map[string]value.Value{
			"name":   value.String(entry.Name()),
			"is_dir": value.Bool(entry.IsDir()),
		}
		if info, infoErr := entry.Info(); infoErr == nil {
			item["size"] = value.Int(info.Size())
		}
		result = append(result, value.Object(item))
	}
	return value.Array(result...), nil
}

func (f *FS) exists(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	hostPath, _, err := f.resolve(path, false)
	if err != nil {
		// Outside every mount: not visible to the guest.
		return value.Bool(false), nil
	}

	_, statErr := os.Stat(hostPath)
	return value.Bool(statErr == nil), nil
}

func (f *FS) mkdir(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	hostPath, mount, err := f.resolve(path, true)
	if err != nil {
		return value.Undefined(), err
	}
	if mount.Mode != MountReadWriteCreate {
		return value.Undefined(), errors.New("permission denied: cannot create directories")
	}

	if err := os.MkdirAll(hostPath, 0755); err != nil {
		return value.Undefined(), errors.New("mkdir error: " + err.Error())
	}
	return value.Undefined(), nil
}

func (f *FS) remove(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	hostPath, _, err := f.resolve(path, true)
	if err != nil {
		return value.Undefined(), err
	}

	if err := os.Remove(hostPath); err != nil {
		if os.IsNotExist(err) {
			return value.Undefined(), errors.New("not found: " + path)
		}
		return value.Undefined(), errors.New("remove error: " + err.Error())
	}
	return value.Undefined(), nil
}

func (f *FS) stat(ctx context.Context, args []value.Value) (value.Value, error) {
	path, err := f.pathArg(args)
	if err != nil {
		return value.Undefined(), err
	}
	hostPath, _, err := f.resolve(path, false)
	if err != nil {
		return value.Undefined(), err
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return value.Undefined(), errors.New("not found: " + path)
		}
		return value.Undefined(), errors.New("stat error: " + err.Error())
	}

	return value.Object(map[string]value.Value{
		"name":     value.String(info.Name()),
		"size":     value.Int(info.Size()),
		"is_dir":   value.Bool(info.IsDir()),
		"mod_time": value.Int(info.ModTime().Unix()),
	}), nil
}
