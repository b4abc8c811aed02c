package modbus

import (
	"context"
	"encoding/binary"
)

// mutex behaves similar to the sync.Mutex, with the following differences:
// 	1. the mutex needs to be initialized by sending a struct{} into it
//	2. a lock attempt can be canceled by the given context
type mutex chan struct{}

func newMutex() mutex {
	new := make(mutex, 1)
	new <- struct{}{}
	return new
}

func (mu mutex) lock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-mu:
		return nil
	}
}

func (mu mutex) unlock() {
	mu <- struct{}{}
}

func put(length int, args ...interface{}) []byte {
	new := make([]byte, length)
	buf := new
	for _, arg := range args {
		switch v := arg.(type) {
		case byte:
			buf = putByte(buf, v)
		case []byte:
			buf = putByteS(buf, v)
		case uint16:
			buf = putUint16(buf, v)
		}
	}

	return new
}

func putByte(buf []byte, arg byte) []byte {
	buf[0] = arg
	return buf[1:]
}

func putByteS(buf []byte, args []byte) []byte {
	return buf[copy(buf, args):]
}

func putUint16(buf []byte, arg uint16) []byte {
	binary.BigEndian.PutUint16(buf, arg)
	return buf[2:]
}
