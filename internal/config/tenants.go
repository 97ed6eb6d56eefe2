package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

// tenantCatalogue is the shape of the YAML tenant file:
//
//	tenants:
//	  - name: Website A
//	    app_id: 1f0c...
type tenantCatalogue struct {
	Tenants []models.Tenant `koanf:"tenants"`
}

// loadTenants resolves the tenant catalogue. Sources, first match wins:
// PUSHCONSOLE_TENANTS_FILE, PUSHCONSOLE_TENANTS, then the two built-in
// websites backed by ONESIGNAL_WEBSITE_A_APP_ID / ONESIGNAL_WEBSITE_B_APP_ID.
func loadTenants() ([]models.Tenant, error) {
	if path := os.Getenv("PUSHCONSOLE_TENANTS_FILE"); path != "" {
		return LoadTenantFile(path)
	}
	if list := os.Getenv("PUSHCONSOLE_TENANTS"); list != "" {
		return ParseTenantList(list)
	}
	return []models.Tenant{
		{Name: "Website A", ExternalAppID: envString("ONESIGNAL_WEBSITE_A_APP_ID", "missing-a-app-id")},
		{Name: "Website B", ExternalAppID: envString("ONESIGNAL_WEBSITE_B_APP_ID", "missing-b-app-id")},
	}, nil
}

// LoadTenantFile reads a YAML tenant catalogue.
func LoadTenantFile(path string) ([]models.Tenant, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load tenant file %s: %w", path, err)
	}

	var cat tenantCatalogue
	if err := k.Unmarshal("", &cat); err != nil {
		return nil, fmt.Errorf("decode tenant file %s: %w", path, err)
	}
	return cat.Tenants, nil
}

// ParseTenantList parses "Name=appId;Name=appId". Names may contain spaces.
func ParseTenantList(list string) ([]models.Tenant, error) {
	var tenants []models.Tenant
	for _, entry := range strings.Split(list, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, appID, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("PUSHCONSOLE_TENANTS entry %q must be Name=appId", entry)
		}
		tenants = append(tenants, models.Tenant{
			Name:          strings.TrimSpace(name),
			ExternalAppID: strings.TrimSpace(appID),
		})
	}
	return tenants, nil
}
