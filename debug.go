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
	"flag"
	"io"
	"io/ioutil"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var fEnableDebug = flag.Bool(
	"kvfs.debug",
	false,
	"Write kvfs debugging messages to stderr.")

var gLogger zerolog.Logger
var gLoggerOnce sync.Once

func initLogger() {
	var writer io.Writer = ioutil.Discard
	if flag.Parsed() && *fEnableDebug {
		writer = os.Stderr
	}

	gLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        writer,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("component", "kvfs").Logger()
}

func getLogger() *zerolog.Logger {
	gLoggerOnce.Do(initLogger)
	return &gLogger
}
