package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Params is the raw options mapping passed by the relying party. Values keep
// their decoded JSON types: string, bool, float64, nil.
type Params map[string]any

// Option keys understood by the gate.
const (
	ParamTermsOfService      = "termsOfService"
	ParamPrivacyPolicy       = "privacyPolicy"
	ParamTosURL              = "tosURL"     // deprecated alias of termsOfService
	ParamPrivacyURL          = "privacyURL" // deprecated alias of privacyPolicy
	ParamSiteLogo            = "siteLogo"
	ParamSiteName            = "siteName"
	ParamReturnTo            = "returnTo"
	ParamBackgroundColor     = "backgroundColor"
	ParamForceAuthentication = "experimental_forceAuthentication"
	ParamForceIssuer         = "experimental_forceIssuer"
	ParamAllowUnverified     = "experimental_allowUnverified"
	ParamRPAPI               = "rp_api"
	ParamStartTime           = "start_time"
)

const siteLogoSchemeMessage = "siteLogos can only be served from https and data schemes."

var (
	digitsPattern    = regexp.MustCompile(`^[0-9]+$`)
	imageMIMEPattern = regexp.MustCompile(`^image/[A-Za-z0-9][A-Za-z0-9!#$&^_.+-]*$`)
	hostValidator    = validator.New()
)

// Validated is the result of running every field rule against a Params.
type Validated struct {
	Start StartInfo
	// ReturnTo is the fully-qualified post-auth redirect, empty when unset.
	ReturnTo  string
	RPAPI     string
	StartTime *int64
}

type rule struct {
	field string
	apply func(cfg Config, origin string, p Params, out *Validated) error
}

// rules run in this order; the first failure wins.
var rules = []rule{
	{ParamTermsOfService, applyTermsOfService},
	{ParamPrivacyPolicy, applyPrivacyPolicy},
	{ParamSiteLogo, applySiteLogo},
	{ParamSiteName, applySiteName},
	{ParamReturnTo, applyReturnTo},
	{ParamBackgroundColor, applyBackgroundColor},
	{ParamForceAuthentication, applyForceAuthentication},
	{ParamForceIssuer, applyForceIssuer},
	{ParamAllowUnverified, applyAllowUnverified},
	{ParamRPAPI, applyRPAPI},
	{ParamStartTime, applyStartTime},
}

// ValidateParams evaluates the field rules without side effects. cfg must
// already be normalized. On failure the error is a *ValidationError.
func ValidateParams(cfg Config, origin string, p Params) (Validated, error) {
	var out Validated
	for _, r := range rules {
		if err := r.apply(cfg, origin, p, &out); err != nil {
			if ve, ok := err.(*ValidationError); ok && ve.Field == "" {
				ve.Field = r.field
			}
			return Validated{}, err
		}
	}
	return out, nil
}

func lookup(p Params, key string) (any, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// lookupWithAlias prefers key and falls back to the deprecated alias.
func lookupWithAlias(p Params, key, alias string) (any, bool) {
	if v, ok := lookup(p, key); ok {
		return v, true
	}
	return lookup(p, alias)
}

func applyTermsOfService(cfg Config, origin string, p Params, out *Validated) error {
	raw, ok := lookupWithAlias(p, ParamTermsOfService, ParamTosURL)
	if !ok {
		return nil
	}
	u, err := FixupURL(cfg, origin, raw)
	if err != nil {
		return err
	}
	out.Start.TermsOfService = u
	return nil
}

func applyPrivacyPolicy(cfg Config, origin string, p Params, out *Validated) error {
	raw, ok := lookupWithAlias(p, ParamPrivacyPolicy, ParamPrivacyURL)
	if !ok {
		return nil
	}
	u, err := FixupURL(cfg, origin, raw)
	if err != nil {
		return err
	}
	out.Start.PrivacyPolicy = u
	return nil
}

func applySiteLogo(cfg Config, origin string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamSiteLogo)
	if !ok {
		return nil
	}
	logo, ok := raw.(string)
	if !ok {
		return invalidf("urls must be strings: (%v)", raw)
	}
	var (
		u   string
		err error
	)
	switch {
	case strings.HasPrefix(logo, "data:"):
		u, err = fixupDataImage(logo)
	case strings.HasPrefix(logo, "//"):
		u, err = FixupURL(cfg, origin, "https:"+logo)
	case strings.HasPrefix(logo, "/"):
		if !isHTTPSOrigin(origin) {
			return invalidf(siteLogoSchemeMessage)
		}
		u, err = FixupAbsolutePath(cfg, origin, logo, false)
	case strings.HasPrefix(logo, "https://"):
		u, err = FixupURL(cfg, origin, logo)
	default:
		return invalidf(siteLogoSchemeMessage)
	}
	if err != nil {
		return err
	}
	out.Start.SiteLogo = u
	return nil
}

// fixupDataImage accepts data: URIs whose media type is image/*.
func fixupDataImage(logo string) (string, error) {
	rest := strings.TrimPrefix(logo, "data:")
	end := strings.IndexAny(rest, ";,")
	if end < 0 {
		return "", invalidf(siteLogoSchemeMessage)
	}
	if !imageMIMEPattern.MatchString(strings.ToLower(rest[:end])) {
		return "", invalidf(siteLogoSchemeMessage)
	}
	return EncodeURI(logo), nil
}

func applySiteName(cfg Config, _ string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamSiteName)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	name := strings.TrimSpace(s)
	if !ok || name == "" || utf8.RuneCountInString(name) > cfg.SiteNameMaxLength {
		return invalidf("invalid value for siteName: %v", raw)
	}
	out.Start.SiteName = name
	return nil
}

func applyReturnTo(cfg Config, origin string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamReturnTo)
	if !ok {
		return nil
	}
	u, err := FixupAbsolutePath(cfg, origin, raw, true)
	if err != nil {
		return err
	}
	out.ReturnTo = u
	return nil
}

func applyBackgroundColor(_ Config, _ string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamBackgroundColor)
	if !ok {
		return nil
	}
	c, err := NormalizeColor(raw)
	if err != nil {
		return err
	}
	out.Start.BackgroundColor = c
	return nil
}

// strictFlag accepts only boolean values; false behaves as if unset.
func strictFlag(p Params, key string) (bool, error) {
	raw, ok := lookup(p, key)
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, invalidf("invalid value for %s: %v", key, raw)
	}
	return b, nil
}

func applyForceAuthentication(_ Config, _ string, p Params, out *Validated) error {
	v, err := strictFlag(p, ParamForceAuthentication)
	if err != nil {
		return err
	}
	out.Start.ForceAuthentication = v
	return nil
}

func applyAllowUnverified(_ Config, _ string, p Params, out *Validated) error {
	v, err := strictFlag(p, ParamAllowUnverified)
	if err != nil {
		return err
	}
	out.Start.AllowUnverified = v
	return nil
}

func applyForceIssuer(_ Config, _ string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamForceIssuer)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok || hostValidator.Var(s, "required,hostname_rfc1123") != nil {
		return invalidf("invalid value for %s: %v", ParamForceIssuer, raw)
	}
	out.Start.ForceIssuer = s
	return nil
}

func applyRPAPI(cfg Config, _ string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamRPAPI)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok || !cfg.rpAPIAllowed(s) {
		return invalidf("invalid value for rp_api: %v", raw)
	}
	out.RPAPI = s
	return nil
}

func applyStartTime(_ Config, _ string, p Params, out *Validated) error {
	raw, ok := lookup(p, ParamStartTime)
	if !ok {
		return nil
	}
	ms, ok := parseStartTime(raw)
	if !ok {
		return invalidf("invalid value for start_time: %v", raw)
	}
	out.StartTime = &ms
	return nil
}

func parseStartTime(raw any) (int64, bool) {
	switch v := raw.(type) {
	case string:
		if !digitsPattern.MatchString(v) {
			return 0, false
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		return ms, err == nil
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, v >= 0
	case int:
		return int64(v), v >= 0
	}
	return 0, false
}
