/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package resmgr contains the engines that reconcile add-on manifests on a cluster.
//
// The ResourceManager performs the following actions:
// - resolves the API type of every manifest document and defaults its namespace
// - creates missing objects without touching existing ones (EnsureExists)
// - creates or overwrites objects carrying forward the live resourceVersion (Replace)
// - deletes a component's CRD first, then waits for its removal or strips the finalizers of its custom resources
// - deletes the remaining objects in reverse declaration order
// - waits for custom resource kinds to be registered
package resmgr
