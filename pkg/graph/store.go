// Package graph provides the read-only action graph store backing a
// single automation: successors, predecessors, roots and load-time
// structural validation.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trigonhq/trigon/pkg/models"
)

// ConfigurationError reports a structurally invalid automation: dangling
// references or cycles. It is raised at load time, never at run time.
type ConfigurationError struct {
	AutomationID string
	Reason       string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid automation configuration %s: %s", e.AutomationID, e.Reason)
}

// IsConfigurationError checks whether err is a load-time configuration error.
func IsConfigurationError(err error) bool {
	var confErr *ConfigurationError

	return errors.As(err, &confErr)
}

// Store indexes an automation's action DAG. It is immutable after
// construction; configuration updates produce a new store.
type Store struct {
	automation   *Automation
	nodes        map[string]*models.ActionNode
	successors   map[string][]string
	predecessors map[string][]string
	roots        []string
}

// Automation aliases the models type so callers of the store read naturally.
type Automation = models.Automation

// NewStore validates the automation's graph and builds the index. Every
// referenced action id must exist and the graph must be acyclic.
func NewStore(automation *models.Automation) (*Store, error) {
	if err := automation.Validate(); err != nil {
		return nil, &ConfigurationError{AutomationID: automation.ID, Reason: err.Error()}
	}

	store := &Store{
		automation:   automation,
		nodes:        automation.Actions,
		successors:   make(map[string][]string, len(automation.Actions)),
		predecessors: make(map[string][]string, len(automation.Actions)),
		roots:        automation.RootActionIDs,
	}

	for id, node := range automation.Actions {
		next := node.PostActionIDs()
		store.successors[id] = next

		for _, succ := range next {
			store.predecessors[succ] = append(store.predecessors[succ], id)
		}
	}

	if cycle := store.findCycle(); cycle != nil {
		return nil, &ConfigurationError{
			AutomationID: automation.ID,
			Reason:       "cycle detected: " + strings.Join(cycle, " -> "),
		}
	}

	return store, nil
}

// Node returns the action node for the given id.
func (s *Store) Node(actionID string) (*models.ActionNode, bool) {
	node, ok := s.nodes[actionID]

	return node, ok
}

// Successors returns every id the action can route to across all branches.
func (s *Store) Successors(actionID string) []string {
	return s.successors[actionID]
}

// Predecessors returns every action that lists actionID as a successor.
// Join points wait on these before executing.
func (s *Store) Predecessors(actionID string) []string {
	return s.predecessors[actionID]
}

// Roots returns the automation's entry actions.
func (s *Store) Roots() []string {
	return s.roots
}

// Automation returns the configuration snapshot backing this store.
func (s *Store) Automation() *models.Automation {
	return s.automation
}

// findCycle runs a DFS with a visiting set over every root. It returns
// the offending path when a back edge is found, nil otherwise.
func (s *Store) findCycle() []string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)

	color := make(map[string]int, len(s.nodes))

	var path []string

	var visit func(id string) []string

	visit = func(id string) []string {
		color[id] = grey
		path = append(path, id)

		for _, next := range s.successors[id] {
			switch color[next] {
			case grey:
				return append(append([]string{}, path...), next)
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		color[id] = black
		path = path[:len(path)-1]

		return nil
	}

	// Start from every node, not just roots, so cycles in unreachable
	// islands are still configuration errors.
	for id := range s.nodes {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}
