// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kvfs

import (
	"path"
	"strings"

	"github.com/jacobsa/kvfs/kvstore"
	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
)

// An AsyncFileSystem is the FileSystem engine expressed against a
// kvstore.AsyncStore, whose operations may block on I/O. Each method
// opens a transaction at entry and brings it to a terminal state before
// returning; any failure after a read-write transaction has been opened
// aborts it before the error is surfaced.
//
// The same path requirements and single-writer assumption as FileSystem
// apply.
type AsyncFileSystem struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock
	store kvstore.AsyncStore
}

// NewAsync creates a file system backed by the supplied store, creating
// the root directory if the store does not already contain one.
func NewAsync(
	ctx context.Context,
	store kvstore.AsyncStore,
	clock timeutil.Clock) (*AsyncFileSystem, error) {
	fs := &AsyncFileSystem{
		clock: clock,
		store: store,
	}

	if err := fs.makeRootDirectory(ctx); err != nil {
		return nil, err
	}

	return fs, nil
}

// Name returns the name of the backing store, for diagnostics.
func (fs *AsyncFileSystem) Name() string {
	return fs.store.Name()
}

func (fs *AsyncFileSystem) IsReadOnly() bool       { return false }
func (fs *AsyncFileSystem) SupportsSymlinks() bool { return false }
func (fs *AsyncFileSystem) SupportsProps() bool    { return false }
func (fs *AsyncFileSystem) SupportsSynch() bool    { return false }

// Empty removes every object from the file system, then re-creates the
// root directory.
func (fs *AsyncFileSystem) Empty(ctx context.Context) error {
	if err := fs.store.Clear(ctx); err != nil {
		return err
	}

	return fs.makeRootDirectory(ctx)
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (fs *AsyncFileSystem) makeRootDirectory(ctx context.Context) (err error) {
	tx, err := fs.store.BeginRW(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	_, found, err := tx.Get(ctx, RootNodeID)
	if err != nil || found {
		return
	}

	payload, err := dirListing{}.serialize()
	if err != nil {
		return
	}

	dataID, err := fs.putNew(ctx, tx, "init", "/", payload)
	if err != nil {
		return
	}

	root := newInode(dataID, dirSize, 0777, TypeDirectory, fs.clock.Now())
	if _, err = tx.Put(ctx, RootNodeID, root.serialize(), true); err != nil {
		return
	}

	return tx.Commit(ctx)
}

// putNew stores val under a fresh random key with overwrite disabled,
// retrying on collision, as in the synchronous engine.
func (fs *AsyncFileSystem) putNew(
	ctx context.Context,
	tx kvstore.AsyncRWTransaction,
	op string,
	p string,
	val []byte) (id string, err error) {
	for i := 0; i < maxIDAttempts; i++ {
		id = randomID()

		var committed bool
		committed, err = tx.Put(ctx, id, val, false)
		if err != nil {
			return "", err
		}

		if committed {
			return
		}
	}

	return "", &Error{Op: op, Path: p, Errno: EIO}
}

func (fs *AsyncFileSystem) getInode(
	ctx context.Context,
	tx kvstore.AsyncROTransaction,
	op string,
	p string,
	id string) (*inode, error) {
	buf, found, err := tx.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, &Error{Op: op, Path: p, Errno: ENOENT}
	}

	in, err := deserializeInode(buf)
	if err != nil {
		return nil, &Error{Op: op, Path: p, Errno: EIO}
	}

	return in, nil
}

func (fs *AsyncFileSystem) getDirListing(
	ctx context.Context,
	tx kvstore.AsyncROTransaction,
	op string,
	p string,
	in *inode) (dirListing, error) {
	if !in.isDir() {
		return nil, &Error{Op: op, Path: p, Errno: ENOTDIR}
	}

	buf, found, err := tx.Get(ctx, in.DataID)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, &Error{Op: op, Path: p, Errno: ENOENT}
	}

	l, err := deserializeListing(buf)
	if err != nil {
		return nil, &Error{Op: op, Path: p, Errno: EIO}
	}

	return l, nil
}

func (fs *AsyncFileSystem) resolveID(
	ctx context.Context,
	tx kvstore.AsyncROTransaction,
	op string,
	parent string,
	leaf string) (string, error) {
	if parent == "/" && leaf == "" {
		return RootNodeID, nil
	}

	var pin *inode
	var err error
	if parent == "/" {
		pin, err = fs.getInode(ctx, tx, op, parent, RootNodeID)
	} else {
		pin, err = fs.resolveInode(ctx, tx, op, parent)
	}
	if err != nil {
		return "", err
	}

	listing, err := fs.getDirListing(ctx, tx, op, parent, pin)
	if err != nil {
		return "", err
	}

	id, ok := listing[leaf]
	if !ok {
		return "", &Error{Op: op, Path: path.Join(parent, leaf), Errno: ENOENT}
	}

	return id, nil
}

func (fs *AsyncFileSystem) resolveInode(
	ctx context.Context,
	tx kvstore.AsyncROTransaction,
	op string,
	p string) (*inode, error) {
	if p == "/" {
		return fs.getInode(ctx, tx, op, p, RootNodeID)
	}

	id, err := fs.resolveID(ctx, tx, op, path.Dir(p), path.Base(p))
	if err != nil {
		return nil, err
	}

	return fs.getInode(ctx, tx, op, p, id)
}

func (fs *AsyncFileSystem) commitNewFile(
	ctx context.Context,
	op string,
	p string,
	t FileType,
	perm uint32,
	payload []byte) (in *inode, err error) {
	if p == "/" {
		return nil, &Error{Op: op, Path: p, Errno: EEXIST}
	}

	parent, leaf := path.Dir(p), path.Base(p)

	tx, err := fs.store.BeginRW(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	pin, err := fs.resolveInode(ctx, tx, op, parent)
	if err != nil {
		return
	}

	listing, err := fs.getDirListing(ctx, tx, op, parent, pin)
	if err != nil {
		return
	}

	if _, ok := listing[leaf]; ok {
		return nil, &Error{Op: op, Path: p, Errno: EEXIST}
	}

	dataID, err := fs.putNew(ctx, tx, op, p, payload)
	if err != nil {
		return
	}

	in = newInode(dataID, uint64(len(payload)), perm, t, fs.clock.Now())

	inodeID, err := fs.putNew(ctx, tx, op, p, in.serialize())
	if err != nil {
		return
	}

	listing[leaf] = inodeID
	buf, err := listing.serialize()
	if err != nil {
		return
	}

	if _, err = tx.Put(ctx, pin.DataID, buf, true); err != nil {
		return
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}

	return in, nil
}

func (fs *AsyncFileSystem) removeEntry(
	ctx context.Context,
	op string,
	p string,
	isDir bool) (err error) {
	parent, leaf := path.Dir(p), path.Base(p)

	tx, err := fs.store.BeginRW(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	pin, err := fs.resolveInode(ctx, tx, op, parent)
	if err != nil {
		return
	}

	listing, err := fs.getDirListing(ctx, tx, op, parent, pin)
	if err != nil {
		return
	}

	id, ok := listing[leaf]
	if !ok {
		return &Error{Op: op, Path: p, Errno: ENOENT}
	}

	delete(listing, leaf)

	cin, err := fs.getInode(ctx, tx, op, p, id)
	if err != nil {
		return
	}

	if !isDir && cin.isDir() {
		return &Error{Op: op, Path: p, Errno: EISDIR}
	}

	if isDir && !cin.isDir() {
		return &Error{Op: op, Path: p, Errno: ENOTDIR}
	}

	if err = tx.Del(ctx, cin.DataID); err != nil {
		return
	}

	if err = tx.Del(ctx, id); err != nil {
		return
	}

	buf, err := listing.serialize()
	if err != nil {
		return
	}

	if _, err = tx.Put(ctx, pin.DataID, buf, true); err != nil {
		return
	}

	return tx.Commit(ctx)
}

////////////////////////////////////////////////////////////////////////
// File system operations
////////////////////////////////////////////////////////////////////////

// Stat returns the attributes of the object at p.
func (fs *AsyncFileSystem) Stat(
	ctx context.Context,
	p string) (attrs InodeAttributes, err error) {
	tx, err := fs.store.BeginRO(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	in, err := fs.resolveInode(ctx, tx, "stat", p)
	if err != nil {
		return
	}

	attrs = in.attributes()
	return
}

// Lstat is identical to Stat; symbolic links are not supported.
func (fs *AsyncFileSystem) Lstat(
	ctx context.Context,
	p string) (InodeAttributes, error) {
	return fs.Stat(ctx, p)
}

// ReadDir returns the names of the children of the directory at p, in
// unspecified order.
func (fs *AsyncFileSystem) ReadDir(
	ctx context.Context,
	p string) (names []string, err error) {
	tx, err := fs.store.BeginRO(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	const op = "readdir"
	in, err := fs.resolveInode(ctx, tx, op, p)
	if err != nil {
		return
	}

	listing, err := fs.getDirListing(ctx, tx, op, p, in)
	if err != nil {
		return
	}

	names = make([]string, 0, len(listing))
	for name := range listing {
		names = append(names, name)
	}

	return
}

// CreateFile creates an empty regular file at p and returns a buffered
// handle to it.
func (fs *AsyncFileSystem) CreateFile(
	ctx context.Context,
	p string,
	flag int,
	perm uint32) (*AsyncFile, error) {
	getLogger().Debug().Str("path", p).Msg("createFile")

	in, err := fs.commitNewFile(ctx, "createFile", p, TypeFile, perm, []byte{})
	if err != nil {
		return nil, err
	}

	return newAsyncFile(fs, p, flag, in.attributes(), []byte{}), nil
}

// OpenFile opens the regular file at p, preloading its contents into a
// buffered handle.
func (fs *AsyncFileSystem) OpenFile(
	ctx context.Context,
	p string,
	flag int) (f *AsyncFile, err error) {
	tx, err := fs.store.BeginRO(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	const op = "openFile"
	in, err := fs.resolveInode(ctx, tx, op, p)
	if err != nil {
		return
	}

	if in.isDir() {
		return nil, &Error{Op: op, Path: p, Errno: EISDIR}
	}

	contents, found, err := tx.Get(ctx, in.DataID)
	if err != nil {
		return
	}

	if !found {
		return nil, &Error{Op: op, Path: p, Errno: ENOENT}
	}

	return newAsyncFile(fs, p, flag, in.attributes(), contents), nil
}

// Mkdir creates an empty directory at p.
func (fs *AsyncFileSystem) Mkdir(
	ctx context.Context,
	p string,
	perm uint32) error {
	getLogger().Debug().Str("path", p).Msg("mkdir")

	payload, err := dirListing{}.serialize()
	if err != nil {
		return err
	}

	_, err = fs.commitNewFile(ctx, "mkdir", p, TypeDirectory, perm, payload)
	return err
}

// Unlink removes the regular file at p.
func (fs *AsyncFileSystem) Unlink(ctx context.Context, p string) error {
	getLogger().Debug().Str("path", p).Msg("unlink")

	return fs.removeEntry(ctx, "unlink", p, false)
}

// Rmdir removes the empty directory at p.
func (fs *AsyncFileSystem) Rmdir(ctx context.Context, p string) error {
	getLogger().Debug().Str("path", p).Msg("rmdir")

	names, err := fs.ReadDir(ctx, p)
	if err != nil {
		return err
	}

	if len(names) > 0 {
		return &Error{Op: "rmdir", Path: p, Errno: ENOTEMPTY}
	}

	return fs.removeEntry(ctx, "rmdir", p, true)
}

// Rename moves the object at oldPath to newPath, with the same
// replacement semantics as FileSystem.Rename. When the two parent
// directories differ, their records are fetched concurrently; the first
// fetch error cancels the other and aborts the transaction exactly
// once.
func (fs *AsyncFileSystem) Rename(
	ctx context.Context,
	oldPath string,
	newPath string) (err error) {
	getLogger().Debug().
		Str("old", oldPath).
		Str("new", newPath).
		Msg("rename")

	const op = "rename"

	oldParent, oldName := path.Dir(oldPath), path.Base(oldPath)
	newParent, newName := path.Dir(newPath), path.Base(newPath)

	// Refuse to move a directory inside itself or a descendant, as in the
	// synchronous engine.
	if strings.HasPrefix(newParent+"/", oldPath+"/") {
		return &Error{Op: op, Path: oldPath, Errno: EBUSY}
	}

	tx, err := fs.store.BeginRW(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	var opin, npin *inode
	var oldListing, newListing dirListing

	if newParent == oldParent {
		if opin, err = fs.resolveInode(ctx, tx, op, oldParent); err != nil {
			return
		}

		if oldListing, err = fs.getDirListing(ctx, tx, op, oldParent, opin); err != nil {
			return
		}

		npin, newListing = opin, oldListing
	} else {
		group, gctx := errgroup.WithContext(ctx)

		group.Go(func() error {
			in, err := fs.resolveInode(gctx, tx, op, oldParent)
			if err != nil {
				return err
			}

			l, err := fs.getDirListing(gctx, tx, op, oldParent, in)
			if err != nil {
				return err
			}

			opin, oldListing = in, l
			return nil
		})

		group.Go(func() error {
			in, err := fs.resolveInode(gctx, tx, op, newParent)
			if err != nil {
				return err
			}

			l, err := fs.getDirListing(gctx, tx, op, newParent, in)
			if err != nil {
				return err
			}

			npin, newListing = in, l
			return nil
		})

		if err = group.Wait(); err != nil {
			return
		}
	}

	id, ok := oldListing[oldName]
	if !ok {
		return &Error{Op: op, Path: oldPath, Errno: ENOENT}
	}

	delete(oldListing, oldName)

	if targetID, ok := newListing[newName]; ok {
		var tin *inode
		if tin, err = fs.getInode(ctx, tx, op, newPath, targetID); err != nil {
			return
		}

		if tin.isDir() {
			return &Error{Op: op, Path: newPath, Errno: EPERM}
		}

		if err = tx.Del(ctx, tin.DataID); err != nil {
			return
		}

		if err = tx.Del(ctx, targetID); err != nil {
			return
		}
	}

	newListing[newName] = id

	buf, err := oldListing.serialize()
	if err != nil {
		return
	}

	if _, err = tx.Put(ctx, opin.DataID, buf, true); err != nil {
		return
	}

	if newParent != oldParent {
		if buf, err = newListing.serialize(); err != nil {
			return
		}

		if _, err = tx.Put(ctx, npin.DataID, buf, true); err != nil {
			return
		}
	}

	return tx.Commit(ctx)
}

// SyncFile persists a buffered file's contents and attributes. Invoked
// by AsyncFile.Sync and AsyncFile.Close for dirty handles.
func (fs *AsyncFileSystem) SyncFile(
	ctx context.Context,
	p string,
	contents []byte,
	attrs InodeAttributes) (err error) {
	getLogger().Debug().Str("path", p).Msg("sync")

	const op = "sync"

	tx, err := fs.store.BeginRW(ctx)
	if err != nil {
		return
	}
	defer tx.Abort(ctx)

	id, err := fs.resolveID(ctx, tx, op, path.Dir(p), path.Base(p))
	if err != nil {
		return
	}

	in, err := fs.getInode(ctx, tx, op, p, id)
	if err != nil {
		return
	}

	changed := in.update(attrs)

	// TODO(jacobsa): Skip this write when only the attributes changed, as
	// in the synchronous engine.
	if _, err = tx.Put(ctx, in.DataID, contents, true); err != nil {
		return
	}

	if changed {
		if _, err = tx.Put(ctx, id, in.serialize(), true); err != nil {
			return
		}
	}

	return tx.Commit(ctx)
}

////////////////////////////////////////////////////////////////////////
// AsyncFile
////////////////////////////////////////////////////////////////////////

// An AsyncFile is a buffered handle to a regular file in an
// AsyncFileSystem, with the same buffering behavior as File.
type AsyncFile struct {
	preload

	fs *AsyncFileSystem
}

func newAsyncFile(
	fs *AsyncFileSystem,
	p string,
	flag int,
	attrs InodeAttributes,
	contents []byte) *AsyncFile {
	f := &AsyncFile{fs: fs}
	f.init(fs.clock, p, flag, attrs, contents)
	return f
}

// Sync flushes the buffer and attributes to the store if the handle is
// dirty.
func (f *AsyncFile) Sync(ctx context.Context) error {
	contents, attrs, dirty := f.flushState()
	if !dirty {
		return nil
	}

	if err := f.fs.SyncFile(ctx, f.path, contents, attrs); err != nil {
		return err
	}

	f.resetDirty()
	return nil
}

// Close flushes the buffer and marks the handle closed.
func (f *AsyncFile) Close(ctx context.Context) error {
	if err := f.Sync(ctx); err != nil {
		return err
	}

	f.markClosed()
	return nil
}
