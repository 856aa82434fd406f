// Package k8s provides the Kubernetes clients used to observe the shared
// build cluster.
package k8s

import (
	"context"
	"fmt"
	"path/filepath"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/dsyorkd/fleet-controller/internal/logger"
)

// Config represents Kubernetes client configuration
type Config struct {
	ConfigPath string `yaml:"config_path"`
	InCluster  bool   `yaml:"in_cluster"`
	Namespace  string `yaml:"namespace"`
}

// Client bundles the typed and dynamic clients for the build cluster. The
// dynamic client is used for pipeline-run custom resources, which have no
// typed API here.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	config    *rest.Config
	log       logger.Interface
	namespace string
}

// NewClient creates a new Kubernetes client for the build cluster
func NewClient(config *Config, log logger.Interface) (*Client, error) {
	if config == nil {
		config = &Config{Namespace: "default"}
	}

	var restConfig *rest.Config
	var err error

	if config.InCluster {
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create in-cluster config: %w", err)
		}
		log.Info("Using in-cluster Kubernetes configuration")
	} else {
		configPath := config.ConfigPath
		if configPath == "" {
			if home := homedir.HomeDir(); home != "" {
				configPath = filepath.Join(home, ".kube", "config")
			}
		}

		restConfig, err = clientcmd.BuildConfigFromFlags("", configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build config from %s: %w", configPath, err)
		}
		log.WithField("config_path", configPath).Info("Using out-of-cluster Kubernetes configuration")
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}

	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic Kubernetes client: %w", err)
	}

	return &Client{
		clientset: clientset,
		dynamic:   dyn,
		config:    restConfig,
		log:       log.WithField("component", "k8s-client"),
		namespace: config.Namespace,
	}, nil
}

// NewClientFromInterfaces wires a Client around pre-built clients, for tests
func NewClientFromInterfaces(clientset kubernetes.Interface, dyn dynamic.Interface, namespace string, log logger.Interface) *Client {
	return &Client{
		clientset: clientset,
		dynamic:   dyn,
		log:       log.WithField("component", "k8s-client"),
		namespace: namespace,
	}
}

// Clientset returns the typed Kubernetes client
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// Dynamic returns the dynamic Kubernetes client
func (c *Client) Dynamic() dynamic.Interface {
	return c.dynamic
}

// Namespace returns the configured default namespace
func (c *Client) Namespace() string {
	return c.namespace
}

// HealthCheck performs a basic health check against the Kubernetes API
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return fmt.Errorf("failed to connect to Kubernetes API: %w", err)
	}
	return nil
}
