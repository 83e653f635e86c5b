package services

import (
	"encoding/json"
	"sort"

	"golang.org/x/text/language"

	types "github.com/prismbi/prism-backend/internal/domain"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// LocalizedOverride is the per-locale text block stored in a
// dashboard's localized_content column. Nil fields fall through to the
// original text.
type LocalizedOverride struct {
	DashboardTitle *string `json:"dashboard_title"`
	Description    *string `json:"description"`
}

// DashboardContent is the presentation payload for one dashboard in
// one locale. Tags is the externally visible name of the stored
// custom_tags column. Structure-bearing fields (position, metadata)
// pass through untouched.
type DashboardContent struct {
	ID             int64           `json:"id"`
	UUID           string          `json:"uuid"`
	Slug           *string         `json:"slug"`
	DashboardTitle string          `json:"dashboard_title"`
	Description    string          `json:"description"`
	CSS            string          `json:"css"`
	PositionJSON   json.RawMessage `json:"position_json"`
	Metadata       json.RawMessage `json:"json_metadata"`
	Tags           []string        `json:"tags"`
	Published      bool            `json:"published"`
	CertifiedBy    string          `json:"certified_by,omitempty"`
	CertDetails    string          `json:"certification_details,omitempty"`
}

// ContentLocalizer renders dashboards for a requested locale.
type ContentLocalizer interface {
	Localize(d *types.Dashboard, locale string) *DashboardContent
}

type contentLocalizer struct {
	enabled bool
	log     *logger.Logger
}

func NewContentLocalizer(enabled bool, baseLog *logger.Logger) ContentLocalizer {
	return &contentLocalizer{enabled: enabled, log: baseLog.With("service", "ContentLocalizer")}
}

// Localize resolves the locale in three steps: exact locale key, then
// the locale's base language, then the original text.
func (l *contentLocalizer) Localize(d *types.Dashboard, locale string) *DashboardContent {
	out := &DashboardContent{
		ID:             d.ID,
		UUID:           d.UUID.String(),
		Slug:           d.Slug,
		DashboardTitle: d.DashboardTitle,
		Description:    d.Description,
		CSS:            d.CSS,
		PositionJSON:   json.RawMessage(d.PositionJSON),
		Metadata:       json.RawMessage(d.Metadata),
		Tags:           decodeTags(d.CustomTags),
		Published:      d.Published,
		CertifiedBy:    d.CertifiedBy,
		CertDetails:    d.CertificationDetails,
	}
	if !l.enabled || locale == "" || len(d.LocalizedContent) == 0 {
		return out
	}

	overrides := map[string]LocalizedOverride{}
	if err := json.Unmarshal(d.LocalizedContent, &overrides); err != nil {
		l.log.Warn("localized_content does not decode, serving original text", "dashboard_id", d.ID, "error", err)
		return out
	}

	ov, ok := resolveOverride(overrides, locale)
	if !ok {
		return out
	}
	if ov.DashboardTitle != nil && *ov.DashboardTitle != "" {
		out.DashboardTitle = *ov.DashboardTitle
	}
	if ov.Description != nil && *ov.Description != "" {
		out.Description = *ov.Description
	}
	return out
}

func resolveOverride(overrides map[string]LocalizedOverride, locale string) (LocalizedOverride, bool) {
	if ov, ok := overrides[locale]; ok {
		return ov, true
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return LocalizedOverride{}, false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return LocalizedOverride{}, false
	}
	want := base.String()

	if ov, ok := overrides[want]; ok {
		return ov, true
	}
	// Any stored key with the same base language serves as fallback;
	// keys are scanned in sorted order so the pick is deterministic.
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		kt, err := language.Parse(key)
		if err != nil {
			continue
		}
		if kb, _ := kt.Base(); kb.String() == want {
			return overrides[key], true
		}
	}
	return LocalizedOverride{}, false
}

func decodeTags(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}
