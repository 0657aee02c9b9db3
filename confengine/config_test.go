// Copyright 2025 The flowkv Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package confengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[general]
addr = "0.0.0.0:7070"
network = "tcp"

[log]
enable_log_file = true
enable_jaeger = false
log_level = "info"
path = "/var/log/flowkv"
rotation = "Daily"

[security]
disabled = false
`

func TestLoadContentAndHas(t *testing.T) {
	c, err := LoadContent([]byte(sampleTOML))
	require.NoError(t, err)

	assert.True(t, c.Has("general.addr"))
	assert.False(t, c.Has("general.nonexistent"))
}

func TestChildAndUnpack(t *testing.T) {
	c, err := LoadContent([]byte(sampleTOML))
	require.NoError(t, err)

	var general struct {
		Addr    string `config:"addr"`
		Network string `config:"network"`
	}
	require.NoError(t, c.UnpackChild("general", &general))
	assert.Equal(t, "0.0.0.0:7070", general.Addr)
	assert.Equal(t, "tcp", general.Network)
}

func TestEnabledAndDisabled(t *testing.T) {
	c, err := LoadContent([]byte(sampleTOML))
	require.NoError(t, err)

	assert.False(t, c.Disabled("security"))
	assert.False(t, c.Enabled("security"))
}

func TestChildOfMissingKeyErrors(t *testing.T) {
	c, err := LoadContent([]byte(sampleTOML))
	require.NoError(t, err)

	_, err = c.Child("nope")
	assert.Error(t, err)
}

func TestChildOfScalarErrors(t *testing.T) {
	c, err := LoadContent([]byte(sampleTOML))
	require.NoError(t, err)

	_, err = c.Child("general.addr")
	assert.Error(t, err)
}
