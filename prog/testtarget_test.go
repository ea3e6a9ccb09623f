// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

// buildTestTarget assembles a tiny synthetic Linux/amd64-shaped target
// with just enough syscalls to exercise resource creation/consumption,
// buffers and pointers: open (produces an fd), write (consumes an fd and
// a data buffer), close (consumes an fd).
func buildTestTarget() *Target {
	const (
		idFd      TypeId = 1
		idFlags   TypeId = 2
		idBufPtr  TypeId = 3
		idBuf     TypeId = 4
		idLen     TypeId = 5
		idPathPtr TypeId = 6
		idPath    TypeId = 7
	)

	fdType := &ResType{TypeCommon: newCommon(idFd, "fd", 8, 8, false, false), ResKind: "fd", Lineage: []ResKind{"fd"}, SpecialVals: []uint64{0xffffffffffffffff}}
	flagsType := &FlagsType{TypeCommon: newCommon(idFlags, "flags", 8, 8, false, false), Vals: []uint64{0, 1, 2}}
	pathType := &BufferFilenameType{TypeCommon: newCommon(idPath, "filename", 0, 1, false, true)}
	pathPtrType := &PtrType{TypeCommon: newCommon(idPathPtr, "ptr_path", 8, 8, false, false), Elem: idPath, ElemDir: DirIn}
	bufType := &BufferBlobType{TypeCommon: newCommon(idBuf, "buf", 0, 1, false, true)}
	bufPtrType := &PtrType{TypeCommon: newCommon(idBufPtr, "ptr_buf", 8, 8, false, false), Elem: idBuf, ElemDir: DirIn}
	lenType := &LenType{TypeCommon: newCommon(idLen, "len", 8, 8, false, false), Path: []string{"buf"}}

	types := []Type{fdType, flagsType, pathType, pathPtrType, bufType, bufPtrType, lenType}

	openCall := &Syscall{Name: "open", NR: 2, Args: []Field{{Name: "path", Type: idPathPtr}, {Name: "flags", Type: idFlags}}, Ret: idFd}
	writeCall := &Syscall{Name: "write", NR: 1, Args: []Field{{Name: "fd", Type: idFd}, {Name: "buf", Type: idBufPtr}, {Name: "len", Type: idLen}}, Ret: TypeIdNone}
	closeCall := &Syscall{Name: "close", NR: 3, Args: []Field{{Name: "fd", Type: idFd}}, Ret: TypeIdNone}

	target := &Target{
		OS:        "linux",
		Arch:      "amd64",
		PtrSize:   8,
		PageSize:  4096,
		NumPages:  256,
		Syscalls:  []*Syscall{openCall, writeCall, closeCall},
		Resources: []*ResourceDesc{{Kind: "fd", Lineage: []ResKind{"fd"}, SpecialVals: []uint64{0xffffffffffffffff}}},
	}
	target.link(types)
	return target
}
