package tc

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/qos/policy"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/tc/generator"
	"github.com/k8snetworkplumbingwg/qos-policy-tc/pkg/utils"
)

// NewActuatorFileWriterImpl returns a new ActuatorFileWriterImpl instance keeping its files in dir
func NewActuatorFileWriterImpl(dir string, log klog.Logger) *ActuatorFileWriterImpl {
	return &ActuatorFileWriterImpl{
		log: log,
		dir: dir,
	}
}

// ActuatorFileWriterImpl implements StateStore interface and is used to save the tc command lines
// of every binding to a file of dir
type ActuatorFileWriterImpl struct {
	log klog.Logger
	dir string
}

// bindingState is the content of a state file
type bindingState struct {
	Interface string           `yaml:"interface"`
	Direction policy.Direction `yaml:"direction"`
	Policy    string           `yaml:"policy"`
	Pass      string           `yaml:"pass,omitempty"`
	Commands  []string         `yaml:"commands"`
}

// Path returns the state file of key
func (a *ActuatorFileWriterImpl) Path(key Key) string {
	return filepath.Join(a.dir, key.Interface+"."+string(key.Direction)+".yaml")
}

// Actuate implements Actuator interface. The file is left untouched if it holds the same commands.
func (a *ActuatorFileWriterImpl) Actuate(desired, _ *generator.Objects) error {
	key := KeyOf(desired)
	path := a.Path(key)
	commands := desired.Render()

	current, err := a.Load(key)
	if err != nil {
		a.log.Error(err, "failed to read state file", "path", path)
	}
	if current != nil && slices.Equal(current, commands) {
		a.log.V(4).Info("current and new commands are the same - no action needed.", "path", path)
		return nil
	}

	buf := bytes.Buffer{}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err = enc.Encode(&bindingState{
		Interface: desired.Interface,
		Direction: desired.Direction,
		Policy:    desired.Policy,
		Pass:      desired.Pass,
		Commands:  commands,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	if err = enc.Close(); err != nil {
		return errors.Wrap(err, "failed to encode state")
	}

	a.log.V(4).Info("saving new commands", "path", path)
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return errors.Wrapf(err, "failed to write state file %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, path), "failed to save state file %s", path)
}

// Teardown implements Actuator interface, it removes the state file
func (a *ActuatorFileWriterImpl) Teardown(previous *generator.Objects) error {
	path := a.Path(KeyOf(previous))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove state file %s", path)
	}
	return nil
}

// Load implements StateStore interface
func (a *ActuatorFileWriterImpl) Load(key Key) ([]string, error) {
	path := a.Path(key)
	exist, err := utils.PathExists(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to determine if path exist: %s", path)
	}
	if !exist {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	state := bindingState{}
	if err = yaml.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "failed to decode state file %s", path)
	}
	if state.Commands == nil {
		state.Commands = []string{}
	}
	return state.Commands, nil
}
