package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/meshpart/meshpart"
	debughttp "github.com/meshpart/meshpart/internal/adapters/http"
	"github.com/meshpart/meshpart/internal/logging"
	"github.com/meshpart/meshpart/internal/presentation/tui"
	"github.com/meshpart/meshpart/pkg/adapters/memory"
	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/observability"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run an ownership-migration scenario on an in-process cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		listen, _ := cmd.Flags().GetString("listen")
		return runScenario(cmd.Context(), args[0], verbose, listen)
	},
}

func init() {
	runCmd.Flags().String("listen", "", "After the run, serve rank 0's debug endpoint on this address")
	rootCmd.AddCommand(runCmd)
}

// payloadStore is the simulator's field data: opaque JSON blobs per entity,
// carried along by the migration protocol through the codec port.
type payloadStore struct {
	data map[domain.EntityKey][]byte
}

func (p *payloadStore) Pack(key domain.EntityKey) ([]byte, error) {
	return p.data[key], nil
}

func (p *payloadStore) Unpack(key domain.EntityKey, b []byte) error {
	p.data[key] = append([]byte(nil), b...)
	return nil
}

func runScenario(ctx context.Context, path string, verbose bool, listen string) error {
	sc, entities, err := LoadScenario(path)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(level)

	cluster := memory.NewCluster(sc.Ranks)
	index := memory.NewIndex()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	meshes := make([]*meshpart.Mesh, sc.Ranks)
	errs := make([]error, sc.Ranks)

	var wg sync.WaitGroup
	for r := 0; r < sc.Ranks; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			m, err := buildAndRun(ctx, sc, entities, cluster, index, rank, logger, metrics)
			meshes[rank] = m
			errs[rank] = err
		}(r)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
	}

	snapshots := make([]domain.MeshSnapshot, sc.Ranks)
	for r, m := range meshes {
		snapshots[r] = m.Snapshot()
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Rank < snapshots[j].Rank })

	render := tui.NewRenderer()
	out, err := render(tui.ReportMarkdown(snapshots))
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Print(out)

	if listen != "" {
		logger.Info("serving debug endpoint", "addr", listen)
		handler := debughttp.NewHandler(meshes[0], registry, logger)
		return nethttp.ListenAndServe(listen, handler)
	}
	return nil
}

func buildAndRun(ctx context.Context, sc *Scenario, entities []EntityDef,
	cluster *memory.Cluster, index *memory.Index, rank int,
	logger *slog.Logger, metrics *observability.Metrics) (*meshpart.Mesh, error) {

	codec := &payloadStore{data: make(map[domain.EntityKey][]byte)}
	m := meshpart.New(cluster.Exchanger(rank), index,
		meshpart.WithLogger(logger),
		meshpart.WithPayloadCodec(codec),
		meshpart.WithMetrics(metrics),
	)

	for _, def := range entities {
		key, _ := ParseKeyRef(def.Key) // validated at load time
		held := def.Owner == rank
		for _, h := range def.Holders {
			if h == rank {
				held = true
			}
		}
		if !held {
			continue
		}
		if err := m.Declare(key, def.Owner); err != nil {
			return m, err
		}
		for _, part := range def.Parts {
			if err := m.AddPart(key, part); err != nil {
				return m, err
			}
		}
		if len(def.Payload) > 0 {
			blob, err := json.Marshal(def.Payload)
			if err != nil {
				return m, fmt.Errorf("payload for %s: %w", key, err)
			}
			codec.data[key] = blob
		}
	}

	for _, rel := range sc.Relations {
		from, err := ParseKeyRef(rel.From)
		if err != nil {
			return m, err
		}
		to, err := ParseKeyRef(rel.To)
		if err != nil {
			return m, err
		}
		if m.Has(from) && m.Has(to) {
			if err := m.DeclareRelation(from, to, rel.Ordinal); err != nil {
				return m, err
			}
		}
	}

	if err := m.Finalize(ctx); err != nil {
		return m, err
	}

	for _, gd := range sc.GhostDomains {
		if err := m.DeclareGhostDomain(gd.Name, domain.GhostLevel(gd.Level)); err != nil {
			return m, err
		}
		for _, member := range gd.Members {
			key, err := ParseKeyRef(member.Key)
			if err != nil {
				return m, err
			}
			if owner, err := m.Owner(key); err == nil && owner == rank {
				if err := m.Ghost(gd.Name, key, member.Receivers...); err != nil {
					return m, err
				}
			}
		}
		if err := m.PushGhosts(ctx, gd.Name); err != nil {
			return m, err
		}
	}

	var requests []domain.ChangeRequest
	for _, move := range sc.Moves {
		key, err := ParseKeyRef(move.Key)
		if err != nil {
			return m, err
		}
		if owner, err := m.Owner(key); err == nil && owner == rank {
			requests = append(requests, domain.ChangeRequest{Key: key, NewOwner: move.NewOwner})
		}
	}
	if err := m.ChangeOwnership(ctx, requests); err != nil {
		return m, err
	}
	return m, nil
}
