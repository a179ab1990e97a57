package config

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// DefaultCountry is the market used when a subscriber names none.
const DefaultCountry = "AU"

var (
	artistIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)
	countryPattern  = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Subscriber is one digest recipient and the artists they follow.
type Subscriber struct {
	Email   string   `mapstructure:"email"`
	Country string   `mapstructure:"country"`
	Artists []string `mapstructure:"artists"`
}

type subscriptionsDoc struct {
	Subscribers []Subscriber `mapstructure:"subscribers"`

	// Single-subscriber layout with the fields at the top level.
	Subscriber `mapstructure:",squash"`
}

// LoadSubscriptions reads and validates the subscriptions document. It
// accepts a list under "subscribers" or a single subscriber at the top level.
func LoadSubscriptions(path string) ([]Subscriber, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading subscriptions: %w", err)
	}

	var doc subscriptionsDoc
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("unmarshaling subscriptions: %w", err)
	}

	subs := doc.Subscribers
	if len(subs) == 0 && (doc.Email != "" || len(doc.Artists) > 0) {
		subs = []Subscriber{doc.Subscriber}
	}

	return NormalizeSubscribers(subs)
}

// NormalizeSubscribers applies defaults, removes duplicate artists and
// validates every entry, reporting all problems at once.
func NormalizeSubscribers(subs []Subscriber) ([]Subscriber, error) {
	errs := &ValidationErrors{}

	if len(subs) == 0 {
		errs.add("subscribers", "no subscribers configured")
	}

	out := make([]Subscriber, 0, len(subs))
	for i, s := range subs {
		field := fmt.Sprintf("subscribers[%d]", i)

		email := strings.TrimSpace(s.Email)
		if addr, err := mail.ParseAddress(email); err != nil {
			errs.add(field+".email", fmt.Sprintf("%q is not a valid address", s.Email))
		} else {
			email = addr.Address
		}

		country := strings.ToUpper(strings.TrimSpace(s.Country))
		if country == "" {
			country = DefaultCountry
		}
		if !countryPattern.MatchString(country) {
			errs.add(field+".country", fmt.Sprintf("%q is not a two-letter market code", s.Country))
		}

		if len(s.Artists) == 0 {
			errs.add(field+".artists", "no artists listed")
		}

		seen := make(map[string]bool, len(s.Artists))
		artists := make([]string, 0, len(s.Artists))
		for _, id := range s.Artists {
			id = strings.TrimSpace(id)
			if !artistIDPattern.MatchString(id) {
				errs.add(field+".artists", fmt.Sprintf("%q is not a 22-character artist id", id))
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			artists = append(artists, id)
		}

		out = append(out, Subscriber{Email: email, Country: country, Artists: artists})
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return out, nil
}
