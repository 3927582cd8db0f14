// Package brand holds the business profile the post prompts are written from.
//
// A built-in profile describes Works-S. An optional YAML file can override any
// field; fields missing from the file keep their default values.
package brand

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PriceTier is one service price shown in the profile.
type PriceTier struct {
	Name string `yaml:"name"`
	Yen  int    `yaml:"yen"`
}

// Profile describes the business and its owner.
type Profile struct {
	BusinessName    string      `yaml:"business_name"`
	BusinessReading string      `yaml:"business_reading"`
	Occupation      string      `yaml:"occupation"`
	Persona         string      `yaml:"persona"`
	Proprietor      string      `yaml:"proprietor"`
	ProprietorAge   string      `yaml:"proprietor_age"`
	Family          string      `yaml:"family"`
	ServiceArea     string      `yaml:"service_area"`
	PriceTiers      []PriceTier `yaml:"price_tiers"`
	Strengths       []string    `yaml:"strengths"`
	BrandMessages   []string    `yaml:"brand_messages"`
	Values          string      `yaml:"values"`
	Platform        string      `yaml:"platform"`
	PostCount       int         `yaml:"post_count"`
}

// MaxPostCount bounds how many posts one request may ask for.
const MaxPostCount = 10

// Default returns the Works-S profile.
func Default() Profile {
	return Profile{
		BusinessName:    "ワークス-S",
		BusinessReading: "ワークスエス",
		Occupation:      "エアコンクリーニング業",
		Persona:         "40代自営業パパ",
		Proprietor:      "篠原翔吾",
		ProprietorAge:   "40代",
		Family:          "奥さんと子ども1人",
		ServiceArea:     "長野県全域（北信・北信州を除く）",
		PriceTiers: []PriceTier{
			{Name: "家庭用ノーマル", Yen: 9000},
			{Name: "お掃除機能付き", Yen: 12000},
		},
		Strengths: []string{"地域密着型", "プロの分解洗浄", "顔が見える安心感"},
		BrandMessages: []string{
			"地域密着だからこそできる、迅速・丁寧な対応",
			"新品のような風が蘇る",
			"一台一台丁寧に仕上げます",
		},
		Values:    "家族のために働く、子どもとの時間を大切にする自営業パパ",
		Platform:  "Threads",
		PostCount: 3,
	}
}

// Validate reports the first missing or out of range field.
func (p Profile) Validate() error {
	switch {
	case p.BusinessName == "":
		return errors.New("business_name is required")
	case p.Proprietor == "":
		return errors.New("proprietor is required")
	case p.Platform == "":
		return errors.New("platform is required")
	case p.PostCount < 1 || p.PostCount > MaxPostCount:
		return fmt.Errorf("post_count must be between 1 and %d, got %d", MaxPostCount, p.PostCount)
	}
	for _, t := range p.PriceTiers {
		if t.Name == "" || t.Yen <= 0 {
			return fmt.Errorf("price tier %q needs a name and a positive price", t.Name)
		}
	}
	return nil
}

// Parse decodes YAML on top of the default profile. Unknown keys are rejected
// so typos surface instead of silently falling back.
func Parse(data []byte) (Profile, error) {
	p := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode brand profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid brand profile: %w", err)
	}
	return p, nil
}

// Load reads a profile file. An empty path yields the default profile.
func Load(path string) (Profile, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //#nosec G304 -- profile path comes from operator config
	if err != nil {
		return Profile{}, fmt.Errorf("read brand profile: %w", err)
	}
	return Parse(data)
}

// Marshal renders the profile as YAML, used by the CLI to print a starting file.
func (p Profile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode brand profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
