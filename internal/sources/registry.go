package sources

import (
	"net/http"

	"github.com/user/arthub/internal/config"
)

// Enabled builds the adapters switched on in cfg, in registration order.
// Aggregated results keep this order before ranking.
func Enabled(cfg *config.Config, client *http.Client) []Source {
	sc := cfg.Sources
	var srcs []Source
	if sc.Artic.Enabled {
		srcs = append(srcs, NewArticSource(client, sc.Artic.BaseURL))
	}
	if sc.Harvard.Enabled {
		srcs = append(srcs, NewHarvardSource(client, sc.Harvard.BaseURL, sc.Harvard.APIKey))
	}
	if sc.Met.Enabled {
		srcs = append(srcs, NewMetSource(client, sc.Met.BaseURL))
	}
	if sc.Cleveland.Enabled {
		srcs = append(srcs, NewClevelandSource(client, sc.Cleveland.BaseURL))
	}
	if sc.VAM.Enabled {
		srcs = append(srcs, NewVAMSource(client, sc.VAM.BaseURL))
	}
	if sc.Smithsonian.Enabled {
		srcs = append(srcs, NewSmithsonianSource(client, sc.Smithsonian.BaseURL, sc.Smithsonian.APIKey))
	}
	return srcs
}
