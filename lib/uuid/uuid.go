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

// Package uuid wraps the satori uuid library with the kit's UUID type.
package uuid

import (
	"database/sql/driver"

	gouuid "github.com/satori/go.uuid"
)

type UUID [16]byte

var Nil = UUID{}

// Generate creates a random (version 4) UUID.
func Generate() UUID {
	return UUID(gouuid.NewV4())
}

func (u UUID) IsNil() bool {
	return Equal(u, Nil)
}

func Equal(u1, u2 UUID) bool {
	return gouuid.Equal(gouuid.UUID(u1), gouuid.UUID(u2))
}

func FromBytes(input []byte) (UUID, error) {
	u, err := gouuid.FromBytes(input)
	return UUID(u), err
}

func FromBytesOrNil(input []byte) UUID {
	return UUID(gouuid.FromBytesOrNil(input))
}

func FromString(input string) (UUID, error) {
	u, err := gouuid.FromString(input)
	return UUID(u), err
}

func FromStringOrNil(input string) UUID {
	return UUID(gouuid.FromStringOrNil(input))
}

func (u UUID) Bytes() []byte {
	return u[:]
}

func (u UUID) MarshalBinary() ([]byte, error) {
	return gouuid.UUID(u).MarshalBinary()
}

func (u UUID) MarshalText() ([]byte, error) {
	return gouuid.UUID(u).MarshalText()
}

func (u *UUID) Scan(src interface{}) error {
	return (*gouuid.UUID)(u).Scan(src)
}

func (u UUID) String() string {
	return gouuid.UUID(u).String()
}

func (u *UUID) UnmarshalBinary(data []byte) error {
	return (*gouuid.UUID)(u).UnmarshalBinary(data)
}

func (u *UUID) UnmarshalText(text []byte) error {
	return (*gouuid.UUID)(u).UnmarshalText(text)
}

func (u UUID) Value() (driver.Value, error) {
	return gouuid.UUID(u).Value()
}
