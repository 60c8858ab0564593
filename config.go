package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// modelCatalog is the fixed, ordered benchmark catalog. Order determines
// benchmark iteration order and the report's tie-break.
var modelCatalog = []string{
	"mobilenet_v1_224.onnx",
	"mobilenet_v1_224_quant.onnx",
	"efficientnet_lite0_224.onnx",
	"efficientnet_lite0_224_quant.onnx",
}

type Config struct {
	Addr      string
	ModelDir  string
	LabelPath string
	ORTLib    string

	SelectedModel string
	UseGPU        bool

	CameraWidth  int
	CameraHeight int
	CameraFPS    int
	Decimation   int

	WarmupDuration  time.Duration
	MeasureDuration time.Duration
}

// LoadConfig reads the environment, with an optional .env file in the
// working directory. Every value has a default; a missing .env is not an
// error.
func LoadConfig(log *logrus.Logger) Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env file")
	}

	cfg := Config{
		Addr:            envString("ADDR", "127.0.0.1:8080"),
		ModelDir:        envString("MODEL_DIR", "./models"),
		LabelPath:       envString("LABEL_PATH", "./assets/labels.txt"),
		ORTLib:          envString("ORT_LIB_PATH", ""),
		SelectedModel:   envString("SELECTED_MODEL", modelCatalog[0]),
		UseGPU:          envString("USE_GPU", "true") == "true",
		CameraWidth:     envInt("CAMERA_WIDTH", 640),
		CameraHeight:    envInt("CAMERA_HEIGHT", 480),
		CameraFPS:       envInt("CAMERA_FPS", 30),
		Decimation:      envInt("FRAME_DECIMATION", 0),
		WarmupDuration:  time.Duration(envInt("BENCH_WARMUP_SECONDS", 5)) * time.Second,
		MeasureDuration: time.Duration(envInt("BENCH_MEASURE_SECONDS", 20)) * time.Second,
	}
	return cfg
}

// Catalog resolves the fixed catalog against the model directory.
func (c Config) Catalog() []string {
	paths := make([]string, len(modelCatalog))
	for i, name := range modelCatalog {
		paths[i] = filepath.Join(c.ModelDir, name)
	}
	return paths
}

// SelectedModelPath resolves the user-selected model.
func (c Config) SelectedModelPath() string {
	return filepath.Join(c.ModelDir, c.SelectedModel)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
