package ws

import (
	"github.com/pkg/errors"

	"x-drive/backend/internal/world"
)

// SceneSerializer sends the render anchors of the scene to clients.
type SceneSerializer struct {
	scene *world.Manager
}

func NewSceneSerializer(scene *world.Manager) *SceneSerializer {
	return &SceneSerializer{scene: scene}
}

// SendCreateForAllObjects mounts every anchor on a client, vehicle first.
func (s *SceneSerializer) SendCreateForAllObjects(w *SafeWriter) error {
	if s == nil || s.scene == nil {
		return nil
	}
	for _, obj := range s.scene.GetAllObjects() {
		if err := w.WriteJSON(NewCreateMessage(obj)); err != nil {
			return errors.Wrapf(err, "sending %s", obj.ID)
		}
	}
	return nil
}

// SendCreateForObject mounts a single anchor on a client.
func (s *SceneSerializer) SendCreateForObject(w *SafeWriter, id string) error {
	if s == nil || s.scene == nil {
		return nil
	}
	obj, ok := s.scene.GetObject(id)
	if !ok {
		return errors.Errorf("object %s not found", id)
	}
	return errors.Wrapf(w.WriteJSON(NewCreateMessage(obj)), "sending %s", id)
}
