// Copyright 2025 Google LLC
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

package blockdev

import (
	"os"
)

// FileDevice is a Device backed by a plain OS file, standing in for the
// disk driver that spec.md §1 treats as an external collaborator: the core
// subsystems need something real to read and write sectors against, and a
// flat file gives them that without pretending to model an actual disk
// controller.
type FileDevice struct {
	f       *os.File
	sectors Sector
}

var _ Device = (*FileDevice)(nil)

// CreateFileDevice creates (truncating if present) a file of exactly
// sectors*SectorSize bytes to back a new Device.
func CreateFileDevice(path string, sectors Sector) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(sectors) * SectorSize); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDevice{f: f, sectors: sectors}, nil
}

// OpenFileDevice opens an existing file as a Device with the given sector
// count, which must not exceed the file's actual size.
func OpenFileDevice(path string, sectors Sector) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileDevice{f: f, sectors: sectors}, nil
}

func (d *FileDevice) ReadSector(s Sector, buf []byte) error {
	if err := d.checkBounds(s, buf); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf[:SectorSize], int64(s)*SectorSize)
	return err
}

func (d *FileDevice) WriteSector(s Sector, buf []byte) error {
	if err := d.checkBounds(s, buf); err != nil {
		return err
	}
	_, err := d.f.WriteAt(buf[:SectorSize], int64(s)*SectorSize)
	return err
}

func (d *FileDevice) SectorCount() Sector {
	return d.sectors
}

func (d *FileDevice) Close() error {
	return d.f.Close()
}

func (d *FileDevice) checkBounds(s Sector, buf []byte) error {
	if s < 0 || s >= d.sectors {
		return &ErrOutOfRange{Sector: s, Count: d.sectors}
	}
	if len(buf) != SectorSize {
		return &ErrBadBufferSize{Got: len(buf)}
	}
	return nil
}
