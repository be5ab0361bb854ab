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
)

// A FileSystem stores a directory tree in a kvstore.Store: one key per
// inode record, one key per payload blob, and the reserved key "/" for
// the root inode.
//
// Paths supplied to all methods must be absolute and clean in the sense
// of path.Clean: slash-separated, no trailing slash, no "." or ".."
// components.
//
// A file system assumes it is the only writer of its store. Two
// instances backed by the same store produce undefined behavior.
type FileSystem struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock
	store kvstore.Store
}

// New creates a file system backed by the supplied store, creating the
// root directory if the store does not already contain one.
func New(store kvstore.Store, clock timeutil.Clock) (*FileSystem, error) {
	fs := &FileSystem{
		clock: clock,
		store: store,
	}

	if err := fs.makeRootDirectory(); err != nil {
		return nil, err
	}

	return fs, nil
}

// Name returns the name of the backing store, for diagnostics.
func (fs *FileSystem) Name() string {
	return fs.store.Name()
}

func (fs *FileSystem) IsReadOnly() bool       { return false }
func (fs *FileSystem) SupportsSymlinks() bool { return false }
func (fs *FileSystem) SupportsProps() bool    { return false }
func (fs *FileSystem) SupportsSynch() bool    { return true }

// Empty removes every object from the file system, then re-creates the
// root directory.
func (fs *FileSystem) Empty() error {
	if err := fs.store.Clear(); err != nil {
		return err
	}

	return fs.makeRootDirectory()
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Create the root directory if the reserved key is absent.
func (fs *FileSystem) makeRootDirectory() (err error) {
	tx, err := fs.store.BeginRW()
	if err != nil {
		return
	}
	defer tx.Abort()

	_, found, err := tx.Get(RootNodeID)
	if err != nil || found {
		return
	}

	payload, err := dirListing{}.serialize()
	if err != nil {
		return
	}

	dataID, err := putNew(tx, "init", "/", payload)
	if err != nil {
		return
	}

	root := newInode(dataID, dirSize, 0777, TypeDirectory, fs.clock.Now())
	if _, err = tx.Put(RootNodeID, root.serialize(), true); err != nil {
		return
	}

	return tx.Commit()
}

// Read and decode the inode record stored under id. A missing record is
// reported as ENOENT against p.
func (fs *FileSystem) getInode(
	tx kvstore.ROTransaction,
	op string,
	p string,
	id string) (*inode, error) {
	buf, found, err := tx.Get(id)
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

// Read and decode the directory listing owned by the given inode. An
// existing directory inode whose payload key is missing indicates store
// corruption and is reported as ENOENT.
func (fs *FileSystem) getDirListing(
	tx kvstore.ROTransaction,
	op string,
	p string,
	in *inode) (dirListing, error) {
	if !in.isDir() {
		return nil, &Error{Op: op, Path: p, Errno: ENOTDIR}
	}

	buf, found, err := tx.Get(in.DataID)
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

// Return the node id of leaf within the directory at parent, by
// recursive descent from the root.
func (fs *FileSystem) resolveID(
	tx kvstore.ROTransaction,
	op string,
	parent string,
	leaf string) (string, error) {
	if parent == "/" && leaf == "" {
		return RootNodeID, nil
	}

	var pin *inode
	var err error
	if parent == "/" {
		pin, err = fs.getInode(tx, op, parent, RootNodeID)
	} else {
		pin, err = fs.resolveInode(tx, op, parent)
	}
	if err != nil {
		return "", err
	}

	listing, err := fs.getDirListing(tx, op, parent, pin)
	if err != nil {
		return "", err
	}

	id, ok := listing[leaf]
	if !ok {
		return "", &Error{Op: op, Path: path.Join(parent, leaf), Errno: ENOENT}
	}

	return id, nil
}

// Return the inode record at p, or ENOENT.
func (fs *FileSystem) resolveInode(
	tx kvstore.ROTransaction,
	op string,
	p string) (*inode, error) {
	if p == "/" {
		return fs.getInode(tx, op, p, RootNodeID)
	}

	id, err := fs.resolveID(tx, op, path.Dir(p), path.Base(p))
	if err != nil {
		return nil, err
	}

	return fs.getInode(tx, op, p, id)
}

// Create a new object at p: payload blob, inode record, and parent
// listing entry, committed atomically.
func (fs *FileSystem) commitNewFile(
	op string,
	p string,
	t FileType,
	perm uint32,
	payload []byte) (in *inode, err error) {
	if p == "/" {
		return nil, &Error{Op: op, Path: p, Errno: EEXIST}
	}

	parent, leaf := path.Dir(p), path.Base(p)

	tx, err := fs.store.BeginRW()
	if err != nil {
		return
	}
	defer tx.Abort()

	pin, err := fs.resolveInode(tx, op, parent)
	if err != nil {
		return
	}

	listing, err := fs.getDirListing(tx, op, parent, pin)
	if err != nil {
		return
	}

	if _, ok := listing[leaf]; ok {
		return nil, &Error{Op: op, Path: p, Errno: EEXIST}
	}

	// The payload first, then the inode record that points at it.
	dataID, err := putNew(tx, op, p, payload)
	if err != nil {
		return
	}

	in = newInode(dataID, uint64(len(payload)), perm, t, fs.clock.Now())

	inodeID, err := putNew(tx, op, p, in.serialize())
	if err != nil {
		return
	}

	listing[leaf] = inodeID
	buf, err := listing.serialize()
	if err != nil {
		return
	}

	if _, err = tx.Put(pin.DataID, buf, true); err != nil {
		return
	}

	if err = tx.Commit(); err != nil {
		return
	}

	return in, nil
}

// Remove the entry at p and delete its inode and payload. isDir says
// which kind of object the caller expects to find.
func (fs *FileSystem) removeEntry(op string, p string, isDir bool) (err error) {
	parent, leaf := path.Dir(p), path.Base(p)

	tx, err := fs.store.BeginRW()
	if err != nil {
		return
	}
	defer tx.Abort()

	pin, err := fs.resolveInode(tx, op, parent)
	if err != nil {
		return
	}

	listing, err := fs.getDirListing(tx, op, parent, pin)
	if err != nil {
		return
	}

	id, ok := listing[leaf]
	if !ok {
		return &Error{Op: op, Path: p, Errno: ENOENT}
	}

	delete(listing, leaf)

	cin, err := fs.getInode(tx, op, p, id)
	if err != nil {
		return
	}

	if !isDir && cin.isDir() {
		return &Error{Op: op, Path: p, Errno: EISDIR}
	}

	if isDir && !cin.isDir() {
		return &Error{Op: op, Path: p, Errno: ENOTDIR}
	}

	// Payload, then inode record, then the parent's listing.
	if err = tx.Del(cin.DataID); err != nil {
		return
	}

	if err = tx.Del(id); err != nil {
		return
	}

	buf, err := listing.serialize()
	if err != nil {
		return
	}

	if _, err = tx.Put(pin.DataID, buf, true); err != nil {
		return
	}

	return tx.Commit()
}

////////////////////////////////////////////////////////////////////////
// File system operations
////////////////////////////////////////////////////////////////////////

// Stat returns the attributes of the object at p.
func (fs *FileSystem) Stat(p string) (attrs InodeAttributes, err error) {
	tx, err := fs.store.BeginRO()
	if err != nil {
		return
	}
	defer tx.Abort()

	in, err := fs.resolveInode(tx, "stat", p)
	if err != nil {
		return
	}

	attrs = in.attributes()
	return
}

// Lstat is identical to Stat; symbolic links are not supported.
func (fs *FileSystem) Lstat(p string) (InodeAttributes, error) {
	return fs.Stat(p)
}

// ReadDir returns the names of the children of the directory at p, in
// unspecified order.
func (fs *FileSystem) ReadDir(p string) (names []string, err error) {
	tx, err := fs.store.BeginRO()
	if err != nil {
		return
	}
	defer tx.Abort()

	const op = "readdir"
	in, err := fs.resolveInode(tx, op, p)
	if err != nil {
		return
	}

	listing, err := fs.getDirListing(tx, op, p, in)
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
func (fs *FileSystem) CreateFile(
	p string,
	flag int,
	perm uint32) (*File, error) {
	getLogger().Debug().Str("path", p).Msg("createFile")

	in, err := fs.commitNewFile("createFile", p, TypeFile, perm, []byte{})
	if err != nil {
		return nil, err
	}

	return newFile(fs, p, flag, in.attributes(), []byte{}), nil
}

// OpenFile opens the regular file at p, preloading its contents into a
// buffered handle.
func (fs *FileSystem) OpenFile(p string, flag int) (f *File, err error) {
	tx, err := fs.store.BeginRO()
	if err != nil {
		return
	}
	defer tx.Abort()

	const op = "openFile"
	in, err := fs.resolveInode(tx, op, p)
	if err != nil {
		return
	}

	if in.isDir() {
		return nil, &Error{Op: op, Path: p, Errno: EISDIR}
	}

	contents, found, err := tx.Get(in.DataID)
	if err != nil {
		return
	}

	if !found {
		return nil, &Error{Op: op, Path: p, Errno: ENOENT}
	}

	return newFile(fs, p, flag, in.attributes(), contents), nil
}

// Mkdir creates an empty directory at p.
func (fs *FileSystem) Mkdir(p string, perm uint32) error {
	getLogger().Debug().Str("path", p).Msg("mkdir")

	payload, err := dirListing{}.serialize()
	if err != nil {
		return err
	}

	_, err = fs.commitNewFile("mkdir", p, TypeDirectory, perm, payload)
	return err
}

// Unlink removes the regular file at p.
func (fs *FileSystem) Unlink(p string) error {
	getLogger().Debug().Str("path", p).Msg("unlink")

	return fs.removeEntry("unlink", p, false)
}

// Rmdir removes the empty directory at p.
func (fs *FileSystem) Rmdir(p string) error {
	getLogger().Debug().Str("path", p).Msg("rmdir")

	// Check emptiness up front, before opening the write transaction.
	names, err := fs.ReadDir(p)
	if err != nil {
		return err
	}

	if len(names) > 0 {
		return &Error{Op: "rmdir", Path: p, Errno: ENOTEMPTY}
	}

	return fs.removeEntry("rmdir", p, true)
}

// Rename moves the object at oldPath to newPath. An existing regular
// file at newPath is replaced and its blobs freed; an existing
// directory at newPath is an error.
func (fs *FileSystem) Rename(oldPath, newPath string) (err error) {
	getLogger().Debug().
		Str("old", oldPath).
		Str("new", newPath).
		Msg("rename")

	const op = "rename"

	oldParent, oldName := path.Dir(oldPath), path.Base(oldPath)
	newParent, newName := path.Dir(newPath), path.Base(newPath)

	// Refuse to move a directory inside itself or a descendant. The
	// appended separators keep sibling names sharing a prefix from
	// matching; this is the reason paths are required to be clean.
	if strings.HasPrefix(newParent+"/", oldPath+"/") {
		return &Error{Op: op, Path: oldPath, Errno: EBUSY}
	}

	tx, err := fs.store.BeginRW()
	if err != nil {
		return
	}
	defer tx.Abort()

	opin, err := fs.resolveInode(tx, op, oldParent)
	if err != nil {
		return
	}

	oldListing, err := fs.getDirListing(tx, op, oldParent, opin)
	if err != nil {
		return
	}

	// When the parents coincide the two listings must be the same map, so
	// that the removal below is visible to the insertion.
	npin, newListing := opin, oldListing
	if newParent != oldParent {
		if npin, err = fs.resolveInode(tx, op, newParent); err != nil {
			return
		}

		if newListing, err = fs.getDirListing(tx, op, newParent, npin); err != nil {
			return
		}
	}

	id, ok := oldListing[oldName]
	if !ok {
		return &Error{Op: op, Path: oldPath, Errno: ENOENT}
	}

	delete(oldListing, oldName)

	// An existing file at the destination is replaced; a directory is
	// not.
	if targetID, ok := newListing[newName]; ok {
		var tin *inode
		if tin, err = fs.getInode(tx, op, newPath, targetID); err != nil {
			return
		}

		if tin.isDir() {
			return &Error{Op: op, Path: newPath, Errno: EPERM}
		}

		if err = tx.Del(tin.DataID); err != nil {
			return
		}

		if err = tx.Del(targetID); err != nil {
			return
		}
	}

	newListing[newName] = id

	buf, err := oldListing.serialize()
	if err != nil {
		return
	}

	if _, err = tx.Put(opin.DataID, buf, true); err != nil {
		return
	}

	if newParent != oldParent {
		if buf, err = newListing.serialize(); err != nil {
			return
		}

		if _, err = tx.Put(npin.DataID, buf, true); err != nil {
			return
		}
	}

	return tx.Commit()
}

// SyncFile persists a buffered file's contents and attributes. Invoked
// by File.Sync and File.Close for dirty handles.
func (fs *FileSystem) SyncFile(
	p string,
	contents []byte,
	attrs InodeAttributes) (err error) {
	getLogger().Debug().Str("path", p).Msg("sync")

	const op = "sync"

	tx, err := fs.store.BeginRW()
	if err != nil {
		return
	}
	defer tx.Abort()

	id, err := fs.resolveID(tx, op, path.Dir(p), path.Base(p))
	if err != nil {
		return
	}

	in, err := fs.getInode(tx, op, p, id)
	if err != nil {
		return
	}

	changed := in.update(attrs)

	// TODO(jacobsa): Skip this write when only the attributes changed;
	// that requires the caller to tell us whether the buffer is dirty
	// separately from the stats.
	if _, err = tx.Put(in.DataID, contents, true); err != nil {
		return
	}

	if changed {
		if _, err = tx.Put(id, in.serialize(), true); err != nil {
			return
		}
	}

	return tx.Commit()
}
