package httpapi

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"jobmail-engine/internal/config"
)

// The config only carries yaml tags, so JSON bodies are merged through a
// generic map and decoded with yaml. That keeps one set of key names.

func yamlToJSONKeys(cfg config.Config) (map[string]any, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeConfig overlays patch onto base section by section, then decodes.
func mergeConfig(base, patch map[string]any) (config.Config, error) {
	for k, v := range patch {
		pm, ok := v.(map[string]any)
		bm, bok := base[k].(map[string]any)
		if ok && bok {
			for kk, vv := range pm {
				bm[kk] = vv
			}
			continue
		}
		base[k] = v
	}

	b, err := yaml.Marshal(base)
	if err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
