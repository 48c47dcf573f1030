package session

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a JSON storable session document and validates it.
func ParseJSON(data []byte) (*Session, error) {
	var storable StorableSession
	if err := json.Unmarshal(data, &storable); err != nil {
		return nil, newConfigError(ErrDecode, "invalid session json", err)
	}
	return FromStorable(storable)
}

// ParseYAML decodes a YAML storable session document and validates it.
func ParseYAML(data []byte) (*Session, error) {
	var storable StorableSession
	if err := yaml.Unmarshal(data, &storable); err != nil {
		return nil, newConfigError(ErrDecode, "invalid session yaml", err)
	}
	return FromStorable(storable)
}

// ToJSON serializes the session's storable form with lexicographically
// sorted services/domains, for byte-stable output.
func (s *Session) ToJSON() ([]byte, error) {
	return json.Marshal(s.Storable())
}

// ToYAML serializes the session's storable form with lexicographically
// sorted services/domains, for byte-stable output.
func (s *Session) ToYAML() ([]byte, error) {
	return yaml.Marshal(s.Storable())
}

// storableFromUpdateRequest extracts the StorableSession portion of an
// UpdateSessionRequest (the name/token used for allocation live alongside
// it, not in the stored document itself).
func storableFromUpdateRequest(req UpdateSessionRequest) StorableSession {
	return StorableSession{
		SessionToken: req.SessionToken,
		Services:     req.Services,
		Domains:      req.Domains,
		CacheRoutes:  req.CacheRoutes,
	}
}

// FromUpdateRequest validates the request's embedded session document and
// returns the desired name alongside the constructed Session.
func FromUpdateRequest(req UpdateSessionRequest) (string, *Session, error) {
	sess, err := FromStorable(storableFromUpdateRequest(req))
	if err != nil {
		return "", nil, err
	}
	return req.DesiredName, sess, nil
}
