package monitoring

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"nodectl/internal/service"
)

// Provisioning files rendered into the monitoring instance directory.
// Prometheus reads its scrape configuration from the prometheus/ mount;
// grafana reads datasources and the dashboards provider from
// grafana/provisioning/.
const (
	prometheusConfigFile = "prometheus/prometheus.yml"
	datasourceFile       = "grafana/provisioning/datasources/prometheus.yml"
	providerFile         = "grafana/provisioning/dashboards/provider.yml"
)

var prometheusConfig = template.Must(template.New("prometheus").Parse(`# Generated by nodectl. Rewritten on install and update.
global:
  scrape_interval: 15s
  evaluation_interval: 15s

scrape_configs:
  - job_name: prometheus
    static_configs:
      - targets: ["localhost:9090"]
{{- range .Jobs }}
  - job_name: {{ .Name }}
    static_configs:
      - targets: [{{ range $i, $t := .Targets }}{{ if $i }}, {{ end }}"{{ $t }}"{{ end }}]
{{- end }}
`))

// Grafana provisioning is static: one prometheus datasource reached over
// monitoring-net, and a file provider watching the dashboards directory.
const datasourceConfig = `# Generated by nodectl.
apiVersion: 1
datasources:
  - name: Prometheus
    type: prometheus
    access: proxy
    url: http://prometheus:9090
    isDefault: true
`

const providerConfig = `# Generated by nodectl.
apiVersion: 1
providers:
  - name: nodectl
    folder: ""
    type: file
    disableDeletion: false
    options:
      path: /etc/grafana/provisioning/dashboards
`

type scrapeJob struct {
	Name    string
	Targets []string
}

// scrapeJobs builds one prometheus job per scrapeable fleet instance.
// Targets are compose container names, resolvable because the
// monitoring containers join validator-net and every Ethnode network.
// The signer network is never joined, so signers are not scraped.
func scrapeJobs(fleet []*service.Instance) []scrapeJob {
	var jobs []scrapeJob
	for _, inst := range fleet {
		switch inst.Kind {
		case service.KindEthnode:
			jobs = append(jobs, scrapeJob{
				Name: inst.Name,
				Targets: []string{
					inst.Name + "-execution:6060",
					inst.Name + "-consensus:5054",
				},
			})
		case service.KindValidator:
			jobs = append(jobs, scrapeJob{
				Name:    inst.Name,
				Targets: []string{inst.Name + "-validator:5064"},
			})
		}
	}
	return jobs
}

// WriteProvisioning renders the prometheus scrape configuration and the
// grafana provisioning files for the monitoring instance. The scrape
// target list reflects the fleet at render time; it is refreshed when
// the monitoring instance is installed or updated.
func WriteProvisioning(inst *service.Instance, fleet []*service.Instance) error {
	var buf bytes.Buffer
	if err := prometheusConfig.Execute(&buf, struct{ Jobs []scrapeJob }{scrapeJobs(fleet)}); err != nil {
		return fmt.Errorf("rendering prometheus configuration: %w", err)
	}
	files := map[string][]byte{
		prometheusConfigFile: buf.Bytes(),
		datasourceFile:       []byte(datasourceConfig),
		providerFile:         []byte(providerConfig),
	}
	for name, data := range files {
		path := filepath.Join(inst.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating provisioning directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
