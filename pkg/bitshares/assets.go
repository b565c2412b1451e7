package bitshares

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	assetsFileName = "assets.yaml"

	defaultAssetCacheSize = 256
)

// AssetsConfig is the root of assets.yaml.
type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

// AssetConfig describes one asset known without asking the node.
type AssetConfig struct {
	// ID is the asset object id (e.g. "1.3.0").
	ID string `yaml:"id"`
	// Symbol is the ticker (e.g. "BTS").
	Symbol string `yaml:"symbol"`
	// Name defaults to Symbol.
	Name string `yaml:"name"`
	// Precision is the number of decimal places of the asset.
	Precision uint8 `yaml:"precision"`
	// Disabled entries are ignored.
	Disabled bool `yaml:"disabled"`
}

// AssetInfo is what amount formatting needs to know about an asset.
type AssetInfo struct {
	ID        string
	Symbol    string
	Name      string
	Precision uint8
}

// CoreAsset describes the chain's core asset.
var CoreAsset = AssetInfo{
	ID:        CoreAssetID,
	Symbol:    CoreAssetSymbol,
	Name:      CoreAssetSymbol,
	Precision: CoreAssetPrecision,
}

// LoadAssets reads <configDirPath>/assets.yaml.
func LoadAssets(configDirPath string) (AssetsConfig, error) {
	assetsPath := filepath.Join(configDirPath, assetsFileName)
	f, err := os.Open(assetsPath)
	if err != nil {
		return AssetsConfig{}, err
	}
	defer f.Close()

	var cfg AssetsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return AssetsConfig{}, err
	}

	if err := cfg.verifyVariables(); err != nil {
		return AssetsConfig{}, err
	}

	return cfg, nil
}

// verifyVariables checks ids and symbols of enabled assets and fills in
// missing names.
func (cfg *AssetsConfig) verifyVariables() error {
	for i, asset := range cfg.Assets {
		if asset.Disabled {
			continue
		}

		if asset.Symbol == "" {
			return fmt.Errorf("missing asset symbol for asset[%d]", i)
		}
		if !IsObjectID(asset.ID) {
			return fmt.Errorf("invalid %s asset id '%s'", asset.Symbol, asset.ID)
		}
		if asset.Precision > 12 {
			return fmt.Errorf("invalid %s asset precision %d", asset.Symbol, asset.Precision)
		}
		if asset.Name == "" {
			cfg.Assets[i].Name = asset.Symbol
		}
	}

	return nil
}

// Lookup finds an enabled asset by id or (case-insensitive) symbol.
func (cfg AssetsConfig) Lookup(symbolOrID string) (AssetInfo, bool) {
	for _, asset := range cfg.Assets {
		if asset.Disabled {
			continue
		}
		if asset.ID == symbolOrID || strings.EqualFold(asset.Symbol, symbolOrID) {
			return AssetInfo{
				ID:        asset.ID,
				Symbol:    asset.Symbol,
				Name:      asset.Name,
				Precision: asset.Precision,
			}, true
		}
	}
	return AssetInfo{}, false
}

// AssetResolver resolves assets from the static config first, then from
// the node, caching what the node returned.
type AssetResolver struct {
	db     *DatabaseAPI
	static AssetsConfig
	cache  *lru.Cache
}

func NewAssetResolver(c Caller, static AssetsConfig, cacheSize int) (*AssetResolver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultAssetCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &AssetResolver{
		db:     NewDatabaseAPI(c),
		static: static,
		cache:  cache,
	}, nil
}

// Resolve returns the asset with the given id or symbol.
func (r *AssetResolver) Resolve(ctx context.Context, symbolOrID string) (AssetInfo, error) {
	if info, ok := r.static.Lookup(symbolOrID); ok {
		return info, nil
	}
	if symbolOrID == CoreAssetID || symbolOrID == CoreAssetSymbol {
		return CoreAsset, nil
	}
	if v, ok := r.cache.Get(cacheKey(symbolOrID)); ok {
		return v.(AssetInfo), nil
	}

	assets, err := r.db.LookupAssetSymbols(ctx, []string{symbolOrID})
	if err != nil {
		return AssetInfo{}, err
	}
	if len(assets) == 0 || assets[0] == nil {
		return AssetInfo{}, fmt.Errorf("%w: %s", ErrAssetNotFound, symbolOrID)
	}

	asset := assets[0]
	info := AssetInfo{
		ID:        asset.ID,
		Symbol:    asset.Symbol,
		Name:      asset.Symbol,
		Precision: asset.Precision,
	}
	r.cache.Add(cacheKey(info.ID), info)
	r.cache.Add(cacheKey(info.Symbol), info)
	return info, nil
}

// Format renders an amount in whole units with its symbol, e.g. "1.50000 BTS".
func (r *AssetResolver) Format(ctx context.Context, amount AssetAmount) (string, error) {
	value, info, err := r.Amount(ctx, amount)
	if err != nil {
		return "", err
	}
	return value.StringFixed(int32(info.Precision)) + " " + info.Symbol, nil
}

// Amount scales a raw amount by the precision of its asset.
func (r *AssetResolver) Amount(ctx context.Context, amount AssetAmount) (decimal.Decimal, AssetInfo, error) {
	info, err := r.Resolve(ctx, amount.AssetID)
	if err != nil {
		return decimal.Zero, AssetInfo{}, err
	}
	return amount.Decimal(info.Precision), info, nil
}

func cacheKey(symbolOrID string) string {
	if IsObjectID(symbolOrID) {
		return symbolOrID
	}
	return strings.ToUpper(symbolOrID)
}
