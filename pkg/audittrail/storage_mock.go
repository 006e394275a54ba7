// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package audittrail

type MockStorage struct {
	Saved map[string][]byte

	Err error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{Saved: make(map[string][]byte)}
}

func (s *MockStorage) SaveFile(filename string, data []byte) error {
	if s.Err != nil {
		return s.Err
	}
	if s.Saved == nil {
		s.Saved = make(map[string][]byte)
	}
	s.Saved[filename] = data
	return nil
}

func (s *MockStorage) Close() error {
	return s.Err
}
