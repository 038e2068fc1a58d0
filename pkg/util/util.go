package util

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// error

type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}

	return e.msg
}

func (e *Error) Unwrap() []error {
	if e.orig == nil {
		return []error{e.code}
	}
	return []error{e.orig, e.code}
}

func WrapErrorf(orig error, code error, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

func (e *Error) Code() error {
	return e.code
}

var (
	ErrInternalServerError = errors.New("internal server error")
	ErrNotFound            = errors.New("your requested item is not found")
	ErrBadParamInput       = errors.New("given param is not valid")
	ErrNoPath              = errors.New("no path found")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrCancelled           = errors.New("operation cancelled")
	ErrInvalidGraph        = errors.New("invalid graph")
)

var MessageInternalServerError string = "internal server error"

// Code returns the sentinel code carried by err, or ErrInternalServerError.
func Code(err error) error {
	var ierr *Error
	if errors.As(err, &ierr) && ierr.code != nil {
		return ierr.code
	}
	for _, c := range []error{ErrNotFound, ErrBadParamInput, ErrNoPath, ErrInvalidConfig, ErrCancelled, ErrInvalidGraph} {
		if errors.Is(err, c) {
			return c
		}
	}
	return ErrInternalServerError
}

func DegreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func StringToFloat64(str string) (float64, error) {
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, err
	}
	return val, nil
}

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func ReverseG[T any](arr []T) []T {
	copyArr := make([]T, len(arr)) // should do on the copy )
	copy(copyArr, arr)
	for i, j := 0, len(copyArr)-1; i < j; i, j = i+1, j-1 {
		copyArr[i], copyArr[j] = copyArr[j], copyArr[i]
	}
	return copyArr
}

// Clamp. NaN is mapped to lo.
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func StopConcurrentOperation(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ReadLine reads one line without the trailing newline. io.EOF is returned only when nothing was read.
func ReadLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
