package score

import "github.com/schollz/looperd/internal/ids"

// ResolveClones walks every clone container in the Project and follows
// sourceContainerID to a concrete payload/fades/actions/lanes,
// respecting each clone's OverrideSet (invariant 3). It returns a new
// Project value; the input is left untouched, matching the
// snapshot-build discipline of §4.2 — resolution happens once, at
// snapshot-build time, not on every callback.
//
// A cycle among clone references is a validation failure (§9 "Cyclic
// container relationships"), reported as a *ValidationError rather
// than resolved partially.
func ResolveClones(p Project) (Project, error) {
	out := p
	out.Songs = make([]Song, len(p.Songs))
	for si, s := range p.Songs {
		outSong := s
		outSong.Tracks = make([]Track, len(s.Tracks))
		for ti, t := range s.Tracks {
			byID := make(map[ids.ContainerID]Container, len(t.Containers))
			for _, c := range t.Containers {
				byID[c.ID] = c
			}
			outTrack := t
			outTrack.Containers = make([]Container, len(t.Containers))
			for ci, c := range t.Containers {
				resolved, err := resolveContainer(c, byID, make(map[ids.ContainerID]bool))
				if err != nil {
					return Project{}, err
				}
				outTrack.Containers[ci] = resolved
			}
			outSong.Tracks[ti] = outTrack
		}
		out.Songs[si] = outSong
	}
	return out, nil
}

func resolveContainer(c Container, byID map[ids.ContainerID]Container, visiting map[ids.ContainerID]bool) (Container, error) {
	if !c.IsClone {
		return c, nil
	}
	if visiting[c.ID] {
		return Container{}, invalid("clone-cycle", "container %s participates in a clone cycle", c.ID)
	}
	visiting[c.ID] = true

	src, ok := byID[c.SourceContainerID]
	if !ok {
		return Container{}, invalid("clone-dangling-source", "container %s clones missing source %s", c.ID, c.SourceContainerID)
	}
	resolvedSrc, err := resolveContainer(src, byID, visiting)
	if err != nil {
		return Container{}, err
	}

	out := c
	if !c.Overrides.Payload {
		out.Payload = resolvedSrc.Payload
	}
	if !c.Overrides.Fades {
		out.EnterFade = resolvedSrc.EnterFade
		out.ExitFade = resolvedSrc.ExitFade
	}
	if !c.Overrides.Actions {
		out.OnEnterActions = resolvedSrc.OnEnterActions
		out.OnExitActions = resolvedSrc.OnExitActions
	}
	if !c.Overrides.Lanes {
		out.AutomationLanes = resolvedSrc.AutomationLanes
	}
	return out, nil
}
