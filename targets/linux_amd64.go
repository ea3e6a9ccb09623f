// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package targets registers the concrete OS/arch syscall descriptions a
// session can fuzz against, the way syzkaller's generated sys/<os>
// packages call prog.RegisterTarget from their own init(). Only a small,
// illustrative slice of the Linux x86-64 syscall surface is described
// here (file descriptor lifecycle, memory mapping, sockets) rather than
// the full generated table a real syzkaller build ships.
package targets

import "github.com/SunHao-0/healer/prog"

// Type ids for the linux/amd64 table. Kept as TypeId constants in one
// block so adding a type only means appending one line here and one
// entry to the types slice in init.
const (
	idFd TypeId = iota + 1
	idSockFd
	idOpenFlags
	idOpenMode
	idPathPtrIn
	idPath
	idBufPtrIn
	idBufPtrOut
	idBuf
	idCountIn
	idCountLen
	idProtFlags
	idMmapFlags
	idMmapAddrPtr
	idLength
	idOffset
	idDomain
	idSockType
	idProtocol
	idDupFd
	idPipeFdsPtr
	idPipeFds
	idSigNum
	idPid
)

// TypeId is a local alias so the constant block above reads naturally;
// it is identical to prog.TypeId.
type TypeId = prog.TypeId

func common(id TypeId, name string, size, align uint64, optional, varlen bool) prog.TypeCommon {
	return prog.NewTypeCommon(id, name, size, align, optional, varlen)
}

// init builds and registers the linux/amd64 target, mirroring the way a
// real syzkaller description package registers itself purely as a side
// effect of being imported.
func init() {
	fdType := &prog.ResType{
		TypeCommon:  common(idFd, "fd", 4, 4, false, false),
		ResKind:     "fd",
		Lineage:     []prog.ResKind{"fd"},
		SpecialVals: []uint64{0xffffffffffffffff},
	}
	sockFdType := &prog.ResType{
		TypeCommon:  common(idSockFd, "sock_fd", 4, 4, false, false),
		ResKind:     "sock_fd",
		Lineage:     []prog.ResKind{"sock_fd", "fd"},
		SpecialVals: []uint64{0xffffffffffffffff},
	}
	openFlags := &prog.FlagsType{
		TypeCommon: common(idOpenFlags, "open_flags", 4, 4, false, false),
		Vals:       []uint64{0x0, 0x1, 0x2, 0x40, 0x200, 0x400, 0x800},
	}
	openMode := &prog.FlagsType{
		TypeCommon: common(idOpenMode, "open_mode", 4, 4, false, false),
		Vals:       []uint64{0o644, 0o600, 0o755, 0o777},
	}
	pathType := &prog.BufferFilenameType{TypeCommon: common(idPath, "filename", 0, 1, false, true)}
	pathPtrIn := &prog.PtrType{TypeCommon: common(idPathPtrIn, "ptr_path_in", 8, 8, false, false), Elem: idPath, ElemDir: prog.DirIn}

	bufType := &prog.BufferBlobType{TypeCommon: common(idBuf, "buf", 0, 1, false, true), HasRange: true, RangeBegin: 0, RangeEnd: 4096}
	bufPtrIn := &prog.PtrType{TypeCommon: common(idBufPtrIn, "ptr_buf_in", 8, 8, false, false), Elem: idBuf, ElemDir: prog.DirIn}
	bufPtrOut := &prog.PtrType{TypeCommon: common(idBufPtrOut, "ptr_buf_out", 8, 8, false, false), Elem: idBuf, ElemDir: prog.DirOut}
	countLen := &prog.LenType{TypeCommon: common(idCountLen, "count", 8, 8, false, false), Path: []string{"buf"}}
	countIn := &prog.IntType{TypeCommon: common(idCountIn, "count_in", 8, 8, false, false), HasRange: true, RangeBegin: 0, RangeEnd: 4096}

	protFlags := &prog.FlagsType{TypeCommon: common(idProtFlags, "prot", 4, 4, false, false), Vals: []uint64{0x0, 0x1, 0x2, 0x4}, Bitmask: true}
	mmapFlags := &prog.FlagsType{TypeCommon: common(idMmapFlags, "mmap_flags", 4, 4, false, false), Vals: []uint64{0x1, 0x2, 0x20}, Bitmask: true}
	mmapAddrPtr := &prog.VmaType{TypeCommon: common(idMmapAddrPtr, "vma", 8, 8, true, false)}
	lengthType := &prog.IntType{TypeCommon: common(idLength, "length", 8, 8, false, false), HasRange: true, RangeBegin: 4096, RangeEnd: 1 << 20, ValAlign: 4096}
	offsetType := &prog.IntType{TypeCommon: common(idOffset, "offset", 8, 8, false, false), HasRange: true, RangeBegin: 0, RangeEnd: 1 << 20, ValAlign: 4096}

	domainType := &prog.FlagsType{TypeCommon: common(idDomain, "domain", 4, 4, false, false), Vals: []uint64{1, 2, 10}}
	sockTypeType := &prog.FlagsType{TypeCommon: common(idSockType, "sock_type", 4, 4, false, false), Vals: []uint64{1, 2, 3}}
	protocolType := &prog.ConstType{TypeCommon: common(idProtocol, "protocol", 4, 4, false, false), Val: 0}
	dupFdType := &prog.ResType{TypeCommon: common(idDupFd, "dup_fd", 4, 4, false, false), ResKind: "fd", Lineage: []prog.ResKind{"fd"}}

	pipeFds := &prog.ArrayType{TypeCommon: common(idPipeFds, "pipe_fds_arr", 0, 4, false, true), Elem: idFd, ElemKind: prog.ArrayRangeLen, RangeBegin: 2, RangeEnd: 2, HasRange: true}
	pipeFdsPtr := &prog.PtrType{TypeCommon: common(idPipeFdsPtr, "ptr_pipe_fds", 8, 8, false, false), Elem: idPipeFds, ElemDir: prog.DirOut}

	sigNumType := &prog.FlagsType{TypeCommon: common(idSigNum, "signum", 4, 4, false, false), Vals: []uint64{2, 9, 15}}
	pidType := &prog.IntType{TypeCommon: common(idPid, "pid", 4, 4, false, false), HasRange: true, RangeBegin: 1, RangeEnd: 1 << 15}

	types := []prog.Type{
		fdType, sockFdType, openFlags, openMode, pathType, pathPtrIn,
		bufType, bufPtrIn, bufPtrOut, countLen, countIn,
		protFlags, mmapFlags, mmapAddrPtr, lengthType, offsetType,
		domainType, sockTypeType, protocolType, dupFdType,
		pipeFds, pipeFdsPtr, sigNumType, pidType,
	}

	openCall := &prog.Syscall{
		Name: "open", NR: 2,
		Args: []prog.Field{{Name: "path", Type: idPathPtrIn}, {Name: "flags", Type: idOpenFlags}, {Name: "mode", Type: idOpenMode}},
		Ret:  idFd,
	}
	readCall := &prog.Syscall{
		Name: "read", NR: 0,
		Args: []prog.Field{{Name: "fd", Type: idFd}, {Name: "buf", Type: idBufPtrOut}, {Name: "count", Type: idCountIn}},
		Ret:  prog.TypeIdNone,
	}
	writeCall := &prog.Syscall{
		Name: "write", NR: 1,
		Args: []prog.Field{{Name: "fd", Type: idFd}, {Name: "buf", Type: idBufPtrIn}, {Name: "count", Type: idCountLen}},
		Ret:  prog.TypeIdNone,
	}
	closeCall := &prog.Syscall{
		Name: "close", NR: 3,
		Args: []prog.Field{{Name: "fd", Type: idFd}},
		Ret:  prog.TypeIdNone,
	}
	mmapCall := &prog.Syscall{
		Name: "mmap", NR: 9,
		Args: []prog.Field{
			{Name: "addr", Type: idMmapAddrPtr}, {Name: "length", Type: idLength},
			{Name: "prot", Type: idProtFlags}, {Name: "flags", Type: idMmapFlags},
			{Name: "fd", Type: idFd}, {Name: "offset", Type: idOffset},
		},
		Ret: prog.TypeIdNone,
	}
	socketCall := &prog.Syscall{
		Name: "socket", NR: 41,
		Args: []prog.Field{{Name: "domain", Type: idDomain}, {Name: "type", Type: idSockType}, {Name: "protocol", Type: idProtocol}},
		Ret:  idSockFd,
	}
	dupCall := &prog.Syscall{
		Name: "dup", NR: 32,
		Args: []prog.Field{{Name: "oldfd", Type: idFd}},
		Ret:  idDupFd,
	}
	pipe2Call := &prog.Syscall{
		Name: "pipe2", NR: 293,
		Args: []prog.Field{{Name: "fds", Type: idPipeFdsPtr}, {Name: "flags", Type: idOpenFlags}},
		Ret:  prog.TypeIdNone,
	}
	killCall := &prog.Syscall{
		Name: "kill", NR: 62,
		Args:  []prog.Field{{Name: "pid", Type: idPid}, {Name: "sig", Type: idSigNum}},
		Ret:   prog.TypeIdNone,
		Attrs: prog.SyscallAttrs{BreaksReturn: true},
	}

	target := &prog.Target{
		OS:       "linux",
		Arch:     "amd64",
		PtrSize:  8,
		PageSize: 4096,
		NumPages: 4096,
		Syscalls: []*prog.Syscall{
			openCall, readCall, writeCall, closeCall, mmapCall,
			socketCall, dupCall, pipe2Call, killCall,
		},
		Resources: []*prog.ResourceDesc{
			{Kind: "fd", Lineage: []prog.ResKind{"fd"}, SpecialVals: []uint64{0xffffffffffffffff}},
			{Kind: "sock_fd", Lineage: []prog.ResKind{"sock_fd", "fd"}, SpecialVals: []uint64{0xffffffffffffffff}},
		},
	}
	prog.RegisterTarget(target, types)
}
