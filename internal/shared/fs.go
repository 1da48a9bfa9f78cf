package shared

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
)

// renameFunc is swapped in tests to simulate rename failures.
var renameFunc = os.Rename

// CrossDeviceError marks a rename that failed because source and destination live on different filesystems.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device rename %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a [CrossDeviceError].
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename wraps [os.Rename] and tags EXDEV failures as [CrossDeviceError].
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		var le *os.LinkError
		if errors.Is(err, syscall.EXDEV) || (errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV)) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// CopyFile copies src to dst, preserving the permission bits and modification time of src.
//
// The copy is staged in a hidden temp file next to dst and renamed into place,
// so dst is either absent or complete.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrCopy, src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrCopy, src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrCopy, src)
	}

	err = WriteFileAtomic(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s -> %s: %v", ErrCopy, src, dst, err)
	}

	// mtime is informational; a failure here does not invalidate the copy.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// WriteFileAtomic creates dst through a temp file in the same directory, filled by write.
//
// On any error the temp file is removed and dst is untouched.
func WriteFileAtomic(dst string, perm os.FileMode, write func(w io.Writer) error) error {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil && runtime.GOOS != "windows" {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
