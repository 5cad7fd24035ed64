// Package kube implements [domain.ClusterClient] against a Kubernetes
// namespace. Each fleet is a Deployment named <app>-<version>; traffic
// routing is a Service named <app> whose selector carries a color label.
package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"

	"github.com/vellankikoti/cutover/internal/domain"
)

const (
	LabelApp   = "app"
	LabelColor = "color"

	// selectorNone is the color a fresh service routes to, so that
	// neither fleet receives traffic before the first explicit switch.
	selectorNone = "none"

	fieldManager = "cutover"

	servicePort = 80

	// defaultRequestTimeout bounds every single apiserver call; the
	// readiness deadline is enforced separately by the prober.
	defaultRequestTimeout = 10 * time.Second
)

// Client talks to one namespace of a live cluster.
type Client struct {
	Clientset kubernetes.Interface
	Namespace string

	// App names the managed service and prefixes the fleet Deployments.
	App string

	// RequestTimeout bounds individual apiserver calls. Defaults to
	// defaultRequestTimeout when zero.
	RequestTimeout time.Duration

	Log zerolog.Logger
}

func (c *Client) reqCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// NewClient builds a Client from a kubeconfig path, falling back to
// in-cluster config when the path is empty.
func NewClient(kubeconfig, namespace, app string, log zerolog.Logger) (*Client, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load cluster config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}

	return &Client{
		Clientset: clientset,
		Namespace: namespace,
		App:       app,
		Log:       log,
	}, nil
}

func (c *Client) fleetName(version domain.Version) string {
	return c.App + "-" + string(version)
}

func (c *Client) fleetLabels(version domain.Version) map[string]string {
	return map[string]string{LabelApp: c.App, LabelColor: string(version)}
}

func (c *Client) GetPods(ctx context.Context, version domain.Version) ([]domain.PodStatus, error) {
	ctx, cancel := c.reqCtx(ctx)
	defer cancel()

	list, err := c.Clientset.CoreV1().Pods(c.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: metav1.FormatLabelSelector(&metav1.LabelSelector{
			MatchLabels: c.fleetLabels(version),
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s pods: %w", version, err)
	}

	pods := make([]domain.PodStatus, 0, len(list.Items))
	for _, pod := range list.Items {
		pods = append(pods, domain.PodStatus{
			Name:  pod.Name,
			Phase: domain.PodPhase(pod.Status.Phase),
			Ready: isPodReady(pod),
		})
	}
	return pods, nil
}

func isPodReady(pod corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func (c *Client) GetFleet(ctx context.Context, version domain.Version) (domain.FleetInfo, error) {
	ctx, cancel := c.reqCtx(ctx)
	defer cancel()

	dep, err := c.Clientset.AppsV1().Deployments(c.Namespace).Get(ctx, c.fleetName(version), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return domain.FleetInfo{}, fmt.Errorf("fleet %s: %w", version, domain.ErrNotFound)
		}
		return domain.FleetInfo{}, fmt.Errorf("get fleet %s: %w", version, err)
	}

	info := domain.FleetInfo{}
	if dep.Spec.Replicas != nil {
		info.DesiredReplicas = *dep.Spec.Replicas
	}
	if containers := dep.Spec.Template.Spec.Containers; len(containers) > 0 {
		info.Image = containers[0].Image
	}
	return info, nil
}

func (c *Client) GetService(ctx context.Context) (domain.ServiceSelector, error) {
	ctx, cancel := c.reqCtx(ctx)
	defer cancel()

	svc, err := c.Clientset.CoreV1().Services(c.Namespace).Get(ctx, c.App, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return domain.ServiceSelector{}, fmt.Errorf("service %q: %w", c.App, domain.ErrNotFound)
		}
		return domain.ServiceSelector{}, fmt.Errorf("get service %q: %w", c.App, err)
	}

	sel := domain.ServiceSelector{ResourceVersion: svc.ResourceVersion}
	if v, err := domain.ParseVersion(svc.Spec.Selector[LabelColor]); err == nil {
		sel.ActiveVersion = v
	}
	return sel, nil
}

// PatchTrafficSelector repoints the service selector in one merge
// patch. The resourceVersion in the patch body makes the apiserver
// reject the write when the service changed since it was read.
func (c *Client) PatchTrafficSelector(ctx context.Context, target domain.Version, expectedResourceVersion string) error {
	ctx, cancel := c.reqCtx(ctx)
	defer cancel()

	patch := fmt.Sprintf(
		`{"metadata":{"resourceVersion":%q},"spec":{"selector":{%q:%q,%q:%q}}}`,
		expectedResourceVersion, LabelApp, c.App, LabelColor, string(target),
	)

	_, err := c.Clientset.CoreV1().Services(c.Namespace).Patch(
		ctx, c.App, types.MergePatchType, []byte(patch),
		metav1.PatchOptions{FieldManager: fieldManager},
	)
	if apierrors.IsConflict(err) {
		return fmt.Errorf("service %q moved: %w", c.App, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("patch service %q selector: %w", c.App, err)
	}

	c.Log.Info().
		Str("service", c.App).
		Str("target", string(target)).
		Msg("traffic selector patched")
	return nil
}

func (c *Client) ApplyFleet(ctx context.Context, version domain.Version, image string, replicas int32) error {
	ctx, cancel := c.reqCtx(ctx)
	defer cancel()

	name := c.fleetName(version)
	deployments := c.Clientset.AppsV1().Deployments(c.Namespace)

	_, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := deployments.Create(ctx, c.newFleet(version, image, replicas), metav1.CreateOptions{FieldManager: fieldManager}); err != nil {
			return fmt.Errorf("create fleet %s: %w", version, err)
		}
		c.Log.Info().Str("fleet", name).Str("image", image).Msg("fleet created")
		return c.ensureService(ctx)
	}
	if err != nil {
		return fmt.Errorf("get fleet %s: %w", version, err)
	}

	err = retry.RetryOnConflict(retry.DefaultBackoff, func() error {
		dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		dep.Spec.Replicas = &replicas
		for i := range dep.Spec.Template.Spec.Containers {
			dep.Spec.Template.Spec.Containers[i].Image = image
		}
		_, err = deployments.Update(ctx, dep, metav1.UpdateOptions{FieldManager: fieldManager})
		return err
	})
	if err != nil {
		return fmt.Errorf("update fleet %s: %w", version, err)
	}
	c.Log.Info().Str("fleet", name).Str("image", image).Msg("fleet updated")
	return c.ensureService(ctx)
}

func (c *Client) ScaleFleet(ctx context.Context, version domain.Version, replicas int32) error {
	ctx, cancel := c.reqCtx(ctx)
	defer cancel()

	name := c.fleetName(version)
	deployments := c.Clientset.AppsV1().Deployments(c.Namespace)

	err := retry.RetryOnConflict(retry.DefaultBackoff, func() error {
		dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		dep.Spec.Replicas = &replicas
		_, err = deployments.Update(ctx, dep, metav1.UpdateOptions{FieldManager: fieldManager})
		return err
	})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("fleet %s: %w", version, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("scale fleet %s: %w", version, err)
	}
	return nil
}

func (c *Client) newFleet(version domain.Version, image string, replicas int32) *appsv1.Deployment {
	labels := c.fleetLabels(version)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      c.fleetName(version),
			Namespace: c.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  c.App,
						Image: image,
					}},
				},
			},
		},
	}
}

// ensureService creates the routing service on first deploy, pointing
// at no fleet. The first switch sets a real color.
func (c *Client) ensureService(ctx context.Context) error {
	services := c.Clientset.CoreV1().Services(c.Namespace)

	_, err := services.Get(ctx, c.App, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get service %q: %w", c.App, err)
	}

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      c.App,
			Namespace: c.Namespace,
			Labels:    map[string]string{LabelApp: c.App},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{LabelApp: c.App, LabelColor: selectorNone},
			Ports: []corev1.ServicePort{{
				Protocol: corev1.ProtocolTCP,
				Port:     servicePort,
			}},
		},
	}
	if _, err := services.Create(ctx, svc, metav1.CreateOptions{FieldManager: fieldManager}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("create service %q: %w", c.App, err)
	}
	c.Log.Info().Str("service", c.App).Msg("routing service created")
	return nil
}
