// Copyright 2018 Tamás Demeter-Haludka
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

// Package log wraps go-kit's structured logger with the logger setups used
// throughout the framework.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"

	"github.com/fatih/color"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-logfmt/logfmt"
)

type Logger = log.Logger
type LoggerFunc = log.LoggerFunc
type Option = level.Option

func With(logger Logger, keyvals ...interface{}) Logger {
	return log.With(logger, keyvals...)
}

func WithPrefix(logger Logger, keyvals ...interface{}) Logger {
	return log.WithPrefix(logger, keyvals...)
}

func NewStdlibAdapter(logger Logger, options ...log.StdlibAdapterOption) io.Writer {
	return log.NewStdlibAdapter(logger, options...)
}

// ValueFormatter renders a log value with custom formatting on the dev logger.
//
// The prod loggers ignore it and log the value itself.
type ValueFormatter interface {
	Format(w io.Writer)
}

// NewProdLogger creates a plain logfmt logger.
//
// Compound values (structs, maps, slices) are flattened into strings so the
// output stays one line per record.
func NewProdLogger(w io.Writer, options ...level.Option) Logger {
	return withLevels(&flattenLogger{
		logger: log.NewLogfmtLogger(log.NewSyncWriter(w)),
	}, options...)
}

func DefaultProdLogger(options ...level.Option) Logger {
	return NewProdLogger(os.Stdout, options...)
}

func NewJSONLogger(w io.Writer, options ...level.Option) Logger {
	return withLevels(log.NewJSONLogger(log.NewSyncWriter(w)), options...)
}

func DefaultJSONLogger(options ...level.Option) Logger {
	return NewJSONLogger(os.Stdout, options...)
}

// NewDevLogger creates a colorful logfmt-ish logger for development setups.
func NewDevLogger(w io.Writer, options ...level.Option) Logger {
	return withLevels(&devLogger{
		w: log.NewSyncWriter(w),
	}, options...)
}

func DefaultDevLogger(options ...level.Option) Logger {
	return NewDevLogger(os.Stdout, options...)
}

func withLevels(l Logger, options ...level.Option) Logger {
	return level.NewFilter(l, options...)
}

var _ Logger = &devLogger{}

type devLogger struct {
	w io.Writer
}

func (l *devLogger) Log(keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}

	if len(keyvals)%2 == 1 {
		keyvals = append(keyvals, nil)
	}

	enc := encoderPool.Get().(*pooledEncoder)
	enc.Reset()
	defer encoderPool.Put(enc)

	plain := make([]interface{}, 0, len(keyvals))

	for i := 0; i < len(keyvals); i += 2 {
		k, v := keyvals[i], keyvals[i+1]
		if k == "level" {
			v = levelName(v.(fmt.Stringer).String())
		}

		// formatted values print bare, without their key
		if f, ok := v.(ValueFormatter); ok {
			f.Format(&enc.buf)
			enc.buf.WriteByte(' ')
			continue
		}

		plain = append(plain, flatten(k), flatten(v))
	}

	if len(plain) > 0 {
		if eerr := enc.EncodeKeyvals(plain...); eerr != nil {
			return eerr
		}
	}

	if eerr := enc.EndRecord(); eerr != nil {
		return eerr
	}

	_, werr := l.w.Write(enc.buf.Bytes())

	return werr
}

type pooledEncoder struct {
	*logfmt.Encoder
	buf bytes.Buffer
}

func (l *pooledEncoder) Reset() {
	l.Encoder.Reset()
	l.buf.Reset()
}

var encoderPool = sync.Pool{
	New: func() interface{} {
		var enc pooledEncoder
		enc.Encoder = logfmt.NewEncoder(&enc.buf)
		return &enc
	},
}

var levelBadges = map[levelName][]byte{
	"debug": []byte(color.New(color.FgBlack, color.BgWhite).Sprint("DEBUG")),
	"info":  []byte(color.New(color.FgWhite, color.BgBlue).Sprint("INFO")),
	"warn":  []byte(color.New(color.FgWhite, color.BgYellow).Sprint("WARN")),
	"error": []byte(color.New(color.FgWhite, color.BgRed).Sprint("ERROR")),
}

type levelName string

func (s levelName) Format(w io.Writer) {
	if badge, ok := levelBadges[s]; ok {
		w.Write(badge)
		return
	}

	w.Write([]byte(s))
}

// flattenLogger converts all compound keyvals into strings.
type flattenLogger struct {
	logger Logger
}

func (l *flattenLogger) Log(keyvals ...interface{}) error {
	for i, v := range keyvals {
		keyvals[i] = flatten(v)
	}

	return l.logger.Log(keyvals...)
}

func flatten(v interface{}) interface{} {
	if v == nil {
		return v
	}

	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Array, reflect.Map, reflect.Slice:
		return fmt.Sprintf("%#v", v)
	case reflect.Struct:
		return fmt.Sprintf("%+v", v)
	}

	return v
}

func Error(logger Logger) Logger {
	return level.Error(logger)
}

func Warn(logger Logger) Logger {
	return level.Warn(logger)
}

func Info(logger Logger) Logger {
	return level.Info(logger)
}

func Debug(logger Logger) Logger {
	return level.Debug(logger)
}

func AllowDebug() Option {
	return level.AllowDebug()
}

func AllowInfo() Option {
	return level.AllowInfo()
}

func AllowWarn() Option {
	return level.AllowWarn()
}

func AllowError() Option {
	return level.AllowError()
}
