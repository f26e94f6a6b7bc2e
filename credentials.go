package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BridgeCredentials holds the API credentials for a paired Hue bridge.
type BridgeCredentials struct {
	Username  string `json:"username"`
	Clientkey string `json:"clientkey"`
}

// credentialsDir overrides the default credentials directory for testing.
// When empty, ~/.ambisync is used.
var credentialsDir string

func credentialsPath() (string, error) {
	if credentialsDir != "" {
		return filepath.Join(credentialsDir, "credentials.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ambisync", "credentials.json"), nil
}

// readAllCredentials returns an empty map when the file does not exist yet.
func readAllCredentials(path string) (map[string]BridgeCredentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]BridgeCredentials{}, nil
	}
	if err != nil {
		return nil, err
	}
	creds := map[string]BridgeCredentials{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return creds, nil
}

func writeAllCredentials(path string, creds map[string]BridgeCredentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCredentials loads the stored credentials for the given bridge ID.
// Returns false with no error if no credentials are found.
func LoadCredentials(bridgeID string) (BridgeCredentials, bool, error) {
	path, err := credentialsPath()
	if err != nil {
		return BridgeCredentials{}, false, err
	}
	all, err := readAllCredentials(path)
	if err != nil {
		return BridgeCredentials{}, false, err
	}
	bc, ok := all[bridgeID]
	return bc, ok, nil
}

// SaveCredentials persists the credentials for the given bridge ID.
// The file is created with mode 0600 in a 0700 directory.
func SaveCredentials(bridgeID string, creds BridgeCredentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	all, err := readAllCredentials(path)
	if err != nil {
		return err
	}
	all[bridgeID] = creds
	return writeAllCredentials(path, all)
}

// DeleteCredentials removes the stored credentials for the given bridge ID.
func DeleteCredentials(bridgeID string) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	all, err := readAllCredentials(path)
	if err != nil {
		return err
	}
	if _, ok := all[bridgeID]; !ok {
		return nil
	}
	delete(all, bridgeID)
	return writeAllCredentials(path, all)
}
