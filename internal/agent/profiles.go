package agent

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/paularlott/loom/internal/log"

	"github.com/BurntSushi/toml"
)

// Profile is a named preset for talking to the agent service
type Profile struct {
	Name         string `toml:"-" json:"name"`
	Model        string `toml:"model" json:"model"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	Description  string `toml:"description" json:"description"`
}

type profileFile struct {
	Profiles map[string]Profile `toml:"profiles"`
}

var (
	profileService *ProfileService
	profileOnce    sync.Once
)

type ProfileService struct {
	profiles map[string]Profile
	mutex    sync.RWMutex
}

// GetProfileService returns the singleton profile service instance
func GetProfileService() *ProfileService {
	profileOnce.Do(func() {
		profileService = &ProfileService{
			profiles: make(map[string]Profile),
		}
	})
	return profileService
}

// Load reads profile definitions from a TOML file, a missing path leaves
// the defaults in place
func (s *ProfileService) Load(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("agent: no profile file", "path", path)
			return nil
		}
		return err
	}

	var file profileFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, profile := range file.Profiles {
		profile.Name = name
		s.profiles[strings.ToLower(name)] = profile
	}

	log.Debug("agent: loaded profiles", "count", len(file.Profiles), "path", path)

	return nil
}

// Get returns the named profile, falling back to an empty default
func (s *ProfileService) Get(name string) Profile {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if profile, ok := s.profiles[strings.ToLower(name)]; ok {
		return profile
	}

	return Profile{Name: name}
}

// GetProfiles returns all loaded profiles sorted by name
func (s *ProfileService) GetProfiles() []Profile {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profiles := make([]Profile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})

	return profiles
}
