/*
Copyright 2026 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fetch

import (
	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
)

// newRetryLogger returns a retryablehttp.LeveledLogger that reports failed
// attempts to the given logr.Logger and traces the retries themselves.
func newRetryLogger(log logr.Logger) retryablehttp.LeveledLogger {
	return &retryLogger{log: log}
}

// retryLogger is a wrapper around logr.Logger that implements the
// retryablehttp.LeveledLogger interface.
type retryLogger struct {
	log logr.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.V(1).Info(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Do nothing.
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.V(2).Info(msg, keysAndValues...)
}
