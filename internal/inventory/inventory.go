// Package inventory manages the local artifacts that record cluster
// addresses: the configuration-tool inventory, the generated SSH access
// config, and the cluster info file.
//
// The three artifacts plus the provisioning tool's recorded state must all
// agree on each host's address; the health reconciler compares them and
// rewrites drifted ones. All rewrites are atomic (temp file + rename).
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Artifact file names inside a deployment directory.
const (
	InventoryFile = "inventory.yml"
	SSHConfigFile = "ssh_config"
	InfoFile      = "cluster-info.json"
)

// Host is one cluster node as recorded in the artifacts.
type Host struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	DataVolumes int    `json:"data_volumes"`
}

// Info is the cluster info file contents.
type Info struct {
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	DBVersion string    `json:"db_version"`
	UpdatedAt time.Time `json:"updated_at"`
	Hosts     []Host    `json:"hosts"`
}

// inventoryDoc mirrors the YAML inventory layout the configuration tool
// consumes.
type inventoryDoc struct {
	All struct {
		Hosts map[string]inventoryHost `yaml:"hosts"`
	} `yaml:"all"`
}

type inventoryHost struct {
	AnsibleHost string `yaml:"ansible_host"`
	DataVolumes int    `yaml:"data_volumes"`
}

// AccessConfig describes how the SSH config artifact is rendered.
type AccessConfig struct {
	AdminUser    string
	RecoveryUser string
	RecoveryPort int
	IdentityFile string
}

// WriteAll (re)generates all three artifacts for the given hosts.
func WriteAll(dir string, info Info, access AccessConfig) error {
	if err := writeInventory(dir, info.Hosts); err != nil {
		return err
	}
	if err := writeSSHConfig(dir, info.Hosts, access); err != nil {
		return err
	}
	return writeInfo(dir, info)
}

func writeInventory(dir string, hosts []Host) error {
	var doc inventoryDoc
	doc.All.Hosts = make(map[string]inventoryHost, len(hosts))
	for _, h := range hosts {
		doc.All.Hosts[h.Name] = inventoryHost{AnsibleHost: h.Address, DataVolumes: h.DataVolumes}
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	return atomicWrite(filepath.Join(dir, InventoryFile), data)
}

func writeSSHConfig(dir string, hosts []Host, access AccessConfig) error {
	var b strings.Builder
	for _, h := range hosts {
		fmt.Fprintf(&b, "Host %s\n", h.Name)
		fmt.Fprintf(&b, "    HostName %s\n", h.Address)
		fmt.Fprintf(&b, "    User %s\n", access.AdminUser)
		fmt.Fprintf(&b, "    IdentityFile %s\n", access.IdentityFile)
		fmt.Fprintf(&b, "    StrictHostKeyChecking no\n\n")
		fmt.Fprintf(&b, "Host %s-recovery\n", h.Name)
		fmt.Fprintf(&b, "    HostName %s\n", h.Address)
		fmt.Fprintf(&b, "    User %s\n", access.RecoveryUser)
		fmt.Fprintf(&b, "    Port %d\n", access.RecoveryPort)
		fmt.Fprintf(&b, "    IdentityFile %s\n", access.IdentityFile)
		fmt.Fprintf(&b, "    StrictHostKeyChecking no\n\n")
	}
	return atomicWrite(filepath.Join(dir, SSHConfigFile), []byte(b.String()))
}

func writeInfo(dir string, info Info) error {
	info.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cluster info: %w", err)
	}
	return atomicWrite(filepath.Join(dir, InfoFile), append(data, '\n'))
}

// LoadInfo reads the cluster info file.
func LoadInfo(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse cluster info: %w", err)
	}
	return &info, nil
}

// Hosts returns the hosts recorded in the inventory, sorted by name.
func Hosts(dir string) ([]Host, error) {
	addrs, volumes, err := loadInventory(dir)
	if err != nil {
		return nil, err
	}
	hosts := make([]Host, 0, len(addrs))
	for name, addr := range addrs {
		hosts = append(hosts, Host{Name: name, Address: addr, DataVolumes: volumes[name]})
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	return hosts, nil
}

func loadInventory(dir string) (addrs map[string]string, volumes map[string]int, err error) {
	data, err := os.ReadFile(filepath.Join(dir, InventoryFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	var doc inventoryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	addrs = make(map[string]string, len(doc.All.Hosts))
	volumes = make(map[string]int, len(doc.All.Hosts))
	for name, h := range doc.All.Hosts {
		addrs[name] = h.AnsibleHost
		volumes[name] = h.DataVolumes
	}
	return addrs, volumes, nil
}

// InventoryAddresses returns host -> address as recorded in the inventory.
func InventoryAddresses(dir string) (map[string]string, error) {
	addrs, _, err := loadInventory(dir)
	return addrs, err
}

// SSHConfigAddresses returns host -> address as recorded in the SSH access
// config. Recovery aliases are skipped; they share the primary address.
func SSHConfigAddresses(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, SSHConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh config: %w", err)
	}

	addrs := make(map[string]string)
	var current string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "Host":
			if strings.HasSuffix(fields[1], "-recovery") {
				current = ""
			} else {
				current = fields[1]
			}
		case "HostName":
			if current != "" {
				addrs[current] = fields[1]
			}
		}
	}
	return addrs, nil
}

// InfoAddresses returns host -> address as recorded in the info file.
func InfoAddresses(dir string) (map[string]string, error) {
	info, err := LoadInfo(dir)
	if err != nil {
		return nil, err
	}
	addrs := make(map[string]string, len(info.Hosts))
	for _, h := range info.Hosts {
		addrs[h.Name] = h.Address
	}
	return addrs, nil
}

// SetAddress rewrites one host's address in all three artifacts. Callers
// are responsible for backing the artifacts up first.
func SetAddress(dir, host, address string) error {
	// Inventory.
	data, err := os.ReadFile(filepath.Join(dir, InventoryFile))
	if err != nil {
		return fmt.Errorf("failed to read inventory: %w", err)
	}
	var doc inventoryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse inventory: %w", err)
	}
	h, ok := doc.All.Hosts[host]
	if !ok {
		return fmt.Errorf("host %s not in inventory", host)
	}
	h.AnsibleHost = address
	doc.All.Hosts[host] = h
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	if err := atomicWrite(filepath.Join(dir, InventoryFile), out); err != nil {
		return err
	}

	// SSH config: HostName lines under both the host and its recovery
	// alias.
	cfgData, err := os.ReadFile(filepath.Join(dir, SSHConfigFile))
	if err != nil {
		return fmt.Errorf("failed to read ssh config: %w", err)
	}
	lines := strings.Split(string(cfgData), "\n")
	inBlock := false
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "Host" {
			inBlock = fields[1] == host || fields[1] == host+"-recovery"
			continue
		}
		if inBlock && len(fields) == 2 && fields[0] == "HostName" {
			indent := line[:strings.Index(line, "HostName")]
			lines[i] = indent + "HostName " + address
		}
	}
	if err := atomicWrite(filepath.Join(dir, SSHConfigFile), []byte(strings.Join(lines, "\n"))); err != nil {
		return err
	}

	// Info file.
	info, err := LoadInfo(dir)
	if err != nil {
		return err
	}
	for i := range info.Hosts {
		if info.Hosts[i].Name == host {
			info.Hosts[i].Address = address
		}
	}
	return writeInfo(dir, *info)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
