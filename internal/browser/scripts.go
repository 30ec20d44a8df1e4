package browser

// Page-side helpers. Each is a function expression applied to JSON-encoded
// arguments; see call().

const resolvePrelude = `
function __rsResolve(path) {
  var v = window;
  var parts = path.split('.');
  for (var i = 0; i < parts.length; i++) {
    if (v === null || v === undefined) return undefined;
    try { v = v[parts[i]]; } catch (e) { return undefined; }
  }
  return v;
}
function __rsRegistry() {
  window.__rentsyncNodes = window.__rentsyncNodes || {seq: 0, byId: {}};
  return window.__rentsyncNodes;
}
function __rsNode(id) {
  var el = __rsRegistry().byId[id];
  return el && el.isConnected ? el : null;
}
`

const lookupJS = `function(path) {
  var v = __rsResolve(path);
  if (v === null || v === undefined) return 'absent';
  if (typeof v === 'function') return 'function';
  if (typeof v === 'object') return 'object';
  return 'value';
}`

const invokeJS = `function(path, args) {
  var parts = path.split('.');
  var name = parts.pop();
  var owner = parts.length ? __rsResolve(parts.join('.')) : window;
  if (owner === null || owner === undefined || typeof owner[name] !== 'function') {
    return {state: 'absent'};
  }
  try {
    var r = owner[name].apply(owner, args);
    if (r && typeof r.then === 'function') { r.then(null, function() {}); }
    return {state: 'ok'};
  } catch (e) {
    return {state: 'threw', message: String((e && e.message) || e)};
  }
}`

const valueJS = `function(path) {
  var v = __rsResolve(path);
  if (v === null || v === undefined) return {found: false};
  try { return {found: true, json: JSON.stringify(v)}; } catch (e) { return {found: false}; }
}`

const hasElementJS = `function(id) {
  return document.getElementById(id) !== null;
}`

const appendScriptJS = `function(id, src) {
  return new Promise(function(resolve) {
    if (document.getElementById(id)) { resolve({ok: true}); return; }
    var s = document.createElement('script');
    s.id = id;
    s.src = src;
    s.async = true;
    s.onload = function() { resolve({ok: true}); };
    s.onerror = function() { resolve({ok: false, message: 'script failed to load: ' + src}); };
    (document.head || document.documentElement).appendChild(s);
  });
}`

const observeJS = `function(selector, binding) {
  var obs = new MutationObserver(function(mutations) {
    for (var i = 0; i < mutations.length; i++) {
      var added = mutations[i].addedNodes;
      for (var j = 0; j < added.length; j++) {
        var n = added[j];
        if (n.nodeType !== 1) continue;
        if (n.matches(selector) || n.querySelector(selector)) {
          window[binding]('');
          return;
        }
      }
    }
  });
  obs.observe(document.documentElement, {childList: true, subtree: true});
  return true;
}`

const queryJS = `function(parentId, selector) {
  var root = parentId ? __rsNode(parentId) : document;
  if (!root) return '';
  var el = root.querySelector(selector);
  if (!el) return '';
  var reg = __rsRegistry();
  if (!el.__rentsyncId) {
    reg.seq++;
    el.__rentsyncId = 'n' + reg.seq;
  }
  reg.byId[el.__rentsyncId] = el;
  return el.__rentsyncId;
}`

const getStyleJS = `function(id) {
  var el = __rsNode(id);
  if (!el) return {found: false};
  return {found: true, style: el.getAttribute('style') || ''};
}`

const setStyleJS = `function(id, style) {
  var el = __rsNode(id);
  if (!el) return false;
  if (style) { el.setAttribute('style', style); } else { el.removeAttribute('style'); }
  return true;
}`

const dispatchJS = `function(id, type) {
  var el = __rsNode(id);
  if (!el) return false;
  el.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
  return true;
}`

const clickJS = `function(id) {
  var el = __rsNode(id);
  if (!el) return false;
  el.click();
  return true;
}`

const markupJS = `function() {
  return document.documentElement.outerHTML;
}`

const locationJS = `function() {
  return window.location.href;
}`

const replaceURLJS = `function(href) {
  history.replaceState(history.state, '', href);
  return true;
}`
