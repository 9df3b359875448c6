package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/df07/go-acoustic-raytracer/pkg/core"
	"github.com/df07/go-acoustic-raytracer/pkg/loaders"
)

const (
	// BuiltinGroup is listed before every room file group
	BuiltinGroup = "Built-in Scenes"
	// RoomGroup is the group of room files that do not name one
	RoomGroup = "Room Files"
)

// roomPattern matches room descriptions at any depth below a scenes directory
const roomPattern = "**/*.{json,yaml,yml}"

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`                    // Unique identifier
	Name        string `json:"name"`                  // Scene name
	DisplayName string `json:"displayName"`           // UI display name
	Description string `json:"description"`           // Optional description
	Group       string `json:"group"`                 // Grouping category
	Type        string `json:"type"`                  // "builtin" or "room"
	FilePath    string `json:"filePath,omitempty"`    // Path to the room file (room type only)
	Fingerprint string `json:"fingerprint,omitempty"` // Content hash of the room file
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

// FindScenesDir returns the first scenes directory that exists, or "" when there is none
func FindScenesDir() string {
	for _, path := range []string{"scenes", "../scenes"} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return ""
}

// ListRoomScenes scans dir recursively for room descriptions. Files that fail
// to load are reported through the logger and skipped.
func ListRoomScenes(dir string, logger core.Logger) ([]SceneInfo, error) {
	if dir == "" {
		return []SceneInfo{}, nil
	}

	files, err := doublestar.FilepathGlob(filepath.Join(dir, roomPattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	scenes := make([]SceneInfo, 0, len(files))
	for _, filePath := range files {
		info, err := RoomSceneInfo(dir, filePath)
		if err != nil {
			if logger != nil {
				logger.Printf("Warning: skipping room file %s: %v\n", filePath, err)
			}
			continue
		}
		scenes = append(scenes, info)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})
	return scenes, nil
}

// RoomSceneInfo loads the metadata of one room file below dir
func RoomSceneInfo(dir, filePath string) (SceneInfo, error) {
	desc, err := loaders.LoadRoom(filePath)
	if err != nil {
		return SceneInfo{}, err
	}

	rel, err := filepath.Rel(dir, filePath)
	if err != nil {
		rel = filepath.Base(filePath)
	}
	id := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))

	name := desc.Name
	if name == filepath.Base(id) {
		name = titleCase(name)
	}
	group := desc.Group
	if group == "" {
		group = RoomGroup
	}

	return SceneInfo{
		ID:          "room:" + id,
		Name:        name,
		DisplayName: name,
		Description: desc.Description,
		Group:       group,
		Type:        "room",
		FilePath:    filePath,
		Fingerprint: desc.Fingerprint,
	}, nil
}

// ListAllScenes returns built-in scenes and the room files in dir, grouped by category
func ListAllScenes(dir string, logger core.Logger) (ScenesResponse, error) {
	var response ScenesResponse

	roomScenes, err := ListRoomScenes(dir, logger)
	if err != nil {
		return response, fmt.Errorf("failed to list room scenes: %w", err)
	}
	allScenes := append(BuiltinSceneInfos(), roomScenes...)

	groupMap := make(map[string][]SceneInfo)
	for _, info := range allScenes {
		groupMap[info.Group] = append(groupMap[info.Group], info)
	}

	// Built-in first, then alphabetical
	var groupNames []string
	for groupName := range groupMap {
		if groupName != BuiltinGroup {
			groupNames = append(groupNames, groupName)
		}
	}
	sort.Strings(groupNames)

	if builtInGroup, exists := groupMap[BuiltinGroup]; exists {
		response.Groups = append(response.Groups, SceneGroup{
			Name:   BuiltinGroup,
			Scenes: builtInGroup,
		})
	}
	for _, groupName := range groupNames {
		response.Groups = append(response.Groups, SceneGroup{
			Name:   groupName,
			Scenes: groupMap[groupName],
		})
	}

	return response, nil
}

// ResolveRoom returns the file behind a "room:" id below dir
func ResolveRoom(id, dir string) (string, error) {
	path := strings.TrimPrefix(id, "room:")
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, path+".{json,yaml,yml}"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve room %q: %w", id, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: room %q not found in %q", core.ErrConfig, id, dir)
	}
	return matches[0], nil
}

// LoadScene builds a scene from a built-in id, a "room:" id below dir or a room file path
func LoadScene(id, dir string) (*Scene, error) {
	if strings.HasPrefix(id, "room:") {
		path, err := ResolveRoom(id, dir)
		if err != nil {
			return nil, err
		}
		s, _, err := NewRoomScene(path)
		return s, err
	}

	if _, err := loaders.FormatFromPath(id); err == nil {
		s, _, err := NewRoomScene(id)
		return s, err
	}
	return NewBuiltinScene(id)
}

// titleCase converts a filename-style string to title case
// e.g., "lecture-hall" -> "Lecture Hall"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}
