package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/joho/godotenv"
	"github.com/syndtr/goleveldb/leveldb"
	"go.mongodb.org/mongo-driver/mongo"

	"mrainet/pkg/db"
	"mrainet/pkg/network"
	"mrainet/pkg/pairs"
	"mrainet/pkg/patch"
	"mrainet/pkg/scans"
	"mrainet/pkg/train"
)

func loadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			godotenv.Load(filename)
		}
	}
}

func env(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envList(name, def string) []string {
	out := []string{}
	for _, v := range strings.Split(env(name, def), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// loadSubjects fetches every listed subject and keeps its middle slice.
func loadSubjects(cache *leveldb.DB, pw progress.Writer, baseURL, scanner string, subjects []string) ([]train.Subject, error) {
	out := make([]train.Subject, 0, len(subjects))
	for _, subject := range subjects {
		slices, err := scans.GetSlices(cache, pw, baseURL, scanner, subject)
		if err != nil {
			return nil, err
		}
		if len(slices) == 0 {
			return nil, fmt.Errorf("no slices for subject %s/%s", scanner, subject)
		}
		s := slices[len(slices)/2]
		out = append(out, train.Subject{Image: s.Image(), Labels: s.LabelMap()})
	}
	return out, nil
}

func main() {
	if _, ok := os.LookupEnv("ENV"); !ok {
		os.Setenv("ENV", "development")
	}
	loadEnv(".env."+os.Getenv("ENV")+".local", ".env."+os.Getenv("ENV"), ".env.local", ".env")

	cachePath := env("MRAI_CACHE", fmt.Sprintf("%s/mrainet-scans.db", os.TempDir()))
	cache, err := leveldb.OpenFile(cachePath, nil)
	if err != nil {
		log.Fatalf("failed to open slice cache %s: %v", cachePath, err)
	}
	defer cache.Close()

	var runDB *mongo.Database
	if _, ok := os.LookupEnv("MONGO_URL"); ok {
		if runDB, err = db.ConnectMongo(); err != nil {
			log.Fatalf("failed to connect to MongoDB: %v", err)
		}
	}

	params := network.NewParamsFromDefaults()
	params.Write(os.Stdout, "Model Config")

	dataURL := env("MRAI_DATA_URL", "https://data.mrainet.dev/brainweb")
	sourceScanner := env("MRAI_SOURCE_SCANNER", "ge15t")
	targetScanner := env("MRAI_TARGET_SCANNER", "ph30t")

	pw := progress.NewWriter()
	pw.SetMessageLength(40)
	pw.SetSortBy(progress.SortByPercentDsc)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerLength(15)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(time.Millisecond * 100)
	go pw.Render()

	source, err := loadSubjects(cache, pw, dataURL, sourceScanner, envList("MRAI_SOURCE_SUBJECTS", "subject01,subject02"))
	if err != nil {
		log.Fatalf("failed to load source subjects: %v", err)
	}
	target, err := loadSubjects(cache, pw, dataURL, targetScanner, envList("MRAI_TARGET_SUBJECTS", "subject01"))
	if err != nil {
		log.Fatalf("failed to load target subjects: %v", err)
	}

	net, err := network.New(params)
	if err != nil {
		log.Fatalf("failed to compile network: %v", err)
	}

	seed := uint64(time.Now().UnixNano())
	rnd := rand.New(rand.NewPCG(seed, seed))

	o := &train.Orchestrator{
		Net: net,
		Sampler: &pairs.Sampler{
			Patch: patch.Size{Height: params.PatchHeight, Width: params.PatchWidth},
			Rand:  rnd,
		},
		NumDraw:    network.NumDraw(),
		NumTargets: network.NumTargets(),
		Fit:        network.FitOptions{Shuffle: true},
		Rand:       rnd,
		OnFit: func(r train.FitResult) {
			log.Printf("fit source %d target %d: %d pairs, train loss %.6f",
				r.SourceSubject, r.TargetSubject, r.Pairs, r.Report.FinalTrainLoss())
			if runDB != nil {
				if err := db.SaveRun(runDB, context.Background(), db.RunRecord{
					Time:          time.Now(),
					SourceSubject: r.SourceSubject,
					TargetSubject: r.TargetSubject,
					CrossSource:   r.CrossSource,
					Pairs:         r.Pairs,
					TrainLoss:     r.Report.FinalTrainLoss(),
					ValidLoss:     r.Report.FinalValidLoss(),
				}); err != nil {
					log.Printf("failed to record run: %v", err)
				}
			}
		},
	}

	if err := o.Train(pw, source, target); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(100 * time.Millisecond)
	}

	archPath := env("MRAI_ARCH_PATH", "mrainet-arch.json")
	weightsPath := env("MRAI_WEIGHTS_PATH", "mrainet-weights.bin")
	if err := net.Save(archPath, weightsPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}
	log.Printf("saved model to %s / %s", archPath, weightsPath)
}
