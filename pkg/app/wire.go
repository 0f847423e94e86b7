package app

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cronguard/internal/config"
	"github.com/flemzord/cronguard/internal/cron"
	"github.com/flemzord/cronguard/internal/redact"

	// Compiled-in modules.
	_ "github.com/flemzord/cronguard/internal/gateway"
	_ "github.com/flemzord/cronguard/modules/store/file"
	_ "github.com/flemzord/cronguard/modules/store/memory"
	_ "github.com/flemzord/cronguard/modules/store/sqlite"
)

// commandTasks turns the configured job table into command tasks, in
// configuration order.
func commandTasks(jobs []config.JobConfig, logger *slog.Logger) []cron.Job {
	out := make([]cron.Job, 0, len(jobs))
	for _, jc := range jobs {
		out = append(out, &cron.CommandTask{
			JobName: jc.Name,
			Expr:    jc.Schedule,
			Argv:    slices.Clone(jc.Command),
			Dir:     jc.Dir,
			Env:     envList(jc.Env),
			Timeout: jc.Timeout,
			Logger:  logger.With("job", jc.Name),
		})
	}
	return out
}

// applyJobs installs cfg's job table. It is the reload target of a
// running daemon.
func (rt *Runtime) applyJobs(_ context.Context, cfg *config.Config) error {
	registerSecrets(rt.Redactor, cfg)
	return rt.Scheduler.ReplaceJobs(commandTasks(cfg.Cron.Jobs, rt.Logger))
}

// registerSecrets feeds job environment secrets and secret-looking module
// settings (gateway credentials) to r.
func registerSecrets(r *redact.Redactor, cfg *config.Config) {
	for _, jc := range cfg.Cron.Jobs {
		r.AddEnv(jc.Env)
	}
	for _, id := range slices.Sorted(maps.Keys(cfg.Modules)) {
		node := cfg.Modules[id]
		addNodeSecrets(r, &node)
	}
}

func addNodeSecrets(r *redact.Redactor, n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			addNodeSecrets(r, c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind == yaml.ScalarNode && redact.IsSecretKey(k.Value) {
				r.AddLiteral(v.Value)
				continue
			}
			addNodeSecrets(r, v)
		}
	}
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
